//go:build !darwin

package wechat

// NewAdapter reports the platform as unsupported. The Windows automation
// path of the reference deployment drives the UIA tree through tooling
// that has no Go counterpart yet.
func NewAdapter() (Adapter, error) {
	return nil, ErrUnsupported
}
