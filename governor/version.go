package governor

// Version is the kernel's semantic version, bumped on every release.
const Version = "0.1.0"
