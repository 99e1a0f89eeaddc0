package gpu

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"

	"github.com/gogpu/naga"
)

//go:embed shaders/grid.wgsl
var gridShaderSource string

//go:embed shaders/post.wgsl
var postPreludeSource string

// GridShaderSource returns the WGSL source of the grid pipeline.
func GridShaderSource() string { return gridShaderSource }

// ErrShaderCompile is wrapped by errors from CompilePostShader.
var ErrShaderCompile = errors.New("gpu: shader compilation failed")

var usesTime = regexp.MustCompile(`\bpost\s*\.\s*time\b`)

// PostShader is a validated user post-processing shader.
type PostShader struct {
	// Source is the prelude followed by the user code.
	Source string
	// Animated is set when the shader reads post.time and therefore
	// changes from frame to frame without new content.
	Animated bool
}

// CompilePostShader appends user to the post-processing prelude and runs
// the result through naga so that errors surface before any pipeline is
// created.
func CompilePostShader(user string) (*PostShader, error) {
	src := postPreludeSource + user
	if _, err := naga.Compile(src); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShaderCompile, err)
	}
	return &PostShader{
		Source:   src,
		Animated: usesTime.MatchString(user),
	}, nil
}
