package file

import "github.com/grokify/seekio"

func init() {
	seekio.Register(seekio.LocalFile, func(locator string, config map[string]string, opts ...seekio.Option) (seekio.Stream, error) {
		return NewWithConfig(locator, ConfigFromMap(config), opts...), nil
	})
	seekio.Register(seekio.FileURI, func(locator string, config map[string]string, opts ...seekio.Option) (seekio.Stream, error) {
		path, err := seekio.PathFromFileURI(locator)
		if err != nil {
			return nil, err
		}
		return NewWithConfig(path, ConfigFromMap(config), opts...), nil
	})
	seekio.Register(seekio.DataURI, func(locator string, config map[string]string, opts ...seekio.Option) (seekio.Stream, error) {
		return NewFromDataURI(locator, ConfigFromMap(config), opts...)
	})
	seekio.Register(seekio.Stdin, func(_ string, config map[string]string, opts ...seekio.Option) (seekio.Stream, error) {
		return NewFromStdin(ConfigFromMap(config), opts...)
	})
}
