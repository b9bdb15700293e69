package probe

import "time"

// nowUTC is the single seam for "current time" in this package, kept as a
// var (rather than scattering time.Now().UTC() calls) so tests can shift
// it if needed.
var nowUTC = func() time.Time { return time.Now().UTC() }
