// Package testutil provides deterministic fakes for the controller's
// boundaries: the remote API, the geolocation provider, and wall time.
package testutil
