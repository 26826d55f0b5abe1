package scopeflow

// Version is the library version, overridable at build time via
// -ldflags "-X github.com/scopeflow/scopeflow.Version=...".
var Version = "0.3.0"
