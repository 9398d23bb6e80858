package types

// Version is the canonical project version. The CLI, the wire frame
// contract, and run reports all share this version.
const Version = "0.3.0"
