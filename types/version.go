package types

// Version is the canonical project version.
// The CLI, the event stream contract, and the binary frame codec share
// this version per the lockstep versioning policy.
const Version = "0.3.0"
