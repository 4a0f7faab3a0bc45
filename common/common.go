// Package common holds process-wide settings shared by the commands.
package common

// PackageName namespaces metrics and identifies the service in logs.
const PackageName = "pdftron_sign"

// Version is set at build time with -ldflags "-X github.com/djvang/pdftron-sign-app/common.Version=...".
var Version = "dev"
