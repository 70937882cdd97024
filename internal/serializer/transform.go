package serializer

import (
	"fmt"
	"sync"

	"github.com/reliefhub/reliefhub/models"
)

// Transform rewrites a document tree between its raw and canonical forms.
// Implementations must be stateless: one instance is registered per name
// and shared by every export that asks for it.
type Transform interface {
	Apply(doc *models.Document) (*models.Document, error)
}

// TransformFunc adapts a plain function to the Transform interface.
type TransformFunc func(doc *models.Document) (*models.Document, error)

func (f TransformFunc) Apply(doc *models.Document) (*models.Document, error) {
	return f(doc)
}

var (
	transformMu sync.RWMutex
	transforms  = make(map[string]Transform)
)

// RegisterTransform binds a transform to a name. Registering the same name
// twice panics; transforms are wired once at startup.
func RegisterTransform(name string, t Transform) {
	transformMu.Lock()
	defer transformMu.Unlock()

	if _, exists := transforms[name]; exists {
		panic(fmt.Sprintf("serializer: transform %q registered twice", name))
	}
	transforms[name] = t
}

// LookupTransform returns the transform registered under name.
func LookupTransform(name string) (Transform, error) {
	transformMu.RLock()
	defer transformMu.RUnlock()

	t, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransform, name)
	}
	return t, nil
}
