//go:build !linux

package event

func newBackend() (backend, error) {
	return nil, ErrUnsupportedPlatform
}
