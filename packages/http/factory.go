package http

// Factory builds the client a feature's steps use
type Factory interface {
	NewClient() *Client
}

// FactoryFunc adapts a plain function to Factory
type FactoryFunc func() *Client

func (f FactoryFunc) NewClient() *Client {
	return f()
}

type optionFactory struct {
	opts []ClientOption
}

// NewFactory returns a Factory that applies opts to every client it builds
func NewFactory(opts ...ClientOption) Factory {
	return &optionFactory{opts: append([]ClientOption(nil), opts...)}
}

func (f *optionFactory) NewClient() *Client {
	return NewClient(f.opts...)
}

// DefaultFactory builds clients with default settings
var DefaultFactory Factory = NewFactory()
