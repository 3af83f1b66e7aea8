package types

// Version is the canonical project version.
// The CLI, the helper daemon, and the wire protocol share this version
// under the lockstep versioning policy.
const Version = "0.3.0"

// HelperProtocolVersion is the version string the helper daemon reports
// for query_version. The lifecycle manager reinstalls the helper whenever
// the reported version differs from this constant.
//
// Kept separate from Version so a CLI release without protocol changes
// does not force a helper reinstall.
const HelperProtocolVersion = "0.3"

// ServiceName is the well-known reverse-DNS service identity shared by
// the client and the helper daemon. It names the systemd unit and the
// runtime socket directory.
const ServiceName = "io.pithecene.freetracer.helper"
