package metaballs

import (
	"fmt"
)

// CompositorTag marks that a module has bound a compositor to the packer.
// Only one may be installed; a second would steal the packer's device buffers.
type CompositorTag struct {
	Name string
}

func ensureSingleCompositor(app *App, name string) {
	if app == nil {
		panic("ensureSingleCompositor: app is nil")
	}
	if tag, ok := Resource[CompositorTag](app); ok {
		app.Logger().Errorf("Multiple compositors installed: %s and %s", tag.Name, name)
		panic(fmt.Sprintf("Multiple compositors installed: %s and %s", tag.Name, name))
	}
	app.addResources(&CompositorTag{Name: name})
}
