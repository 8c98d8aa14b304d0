package di

// Token is a typed key for a service in the container.
type Token[T any] struct {
	name string
}

// NewToken creates a typed token.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the registration name.
func (t Token[T]) Name() string {
	return t.name
}

// RegisterToken registers a typed lazy factory.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves a typed service. A factory that returned a nil
// interface resolves to T's zero value.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	v := sr.Get(token.name)
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}
