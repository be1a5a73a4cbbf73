//go:build !unix

package audit

import "os"

// No flock here; only the in-process mutex serializes records.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) {}
