package http

import (
	"github.com/grokify/seekio"
	"github.com/grokify/seekio/backend/remote"
)

func init() {
	seekio.Register(seekio.HTTP, factory)
	seekio.Register(seekio.HTTPS, factory)
}

func factory(locator string, config map[string]string, opts ...seekio.Option) (seekio.Stream, error) {
	f, err := New(locator, ConfigFromMap(config), opts...)
	if err != nil {
		return nil, err
	}
	return remote.NewOwned(remote.Decorate(f, config), locator, opts...), nil
}
