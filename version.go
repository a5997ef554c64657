package branchpoll

// Version is the release of the module, overridable at link time.
var Version = "0.1.0"
