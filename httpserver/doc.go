// Package httpserver runs the API handlers behind request logging and
// metrics, next to the health endpoints used by load balancers:
//
//	/livez    always 200 while the process serves
//	/readyz   200 unless drained
//	/drain    mark not ready
//	/undrain  mark ready again
//
// pprof is mounted under /debug when enabled. Prometheus metrics are served
// on a separate listener.
package httpserver
