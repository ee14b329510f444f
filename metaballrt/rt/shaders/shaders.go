package shaders

import (
	_ "embed"
)

//go:embed metaball.wgsl
var MetaballWGSL string

//go:embed scene.wgsl
var SceneWGSL string
