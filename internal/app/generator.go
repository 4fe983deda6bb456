package app

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// generator adapts Genkit text generation to the query engine's
// Generator interface.
type generator struct {
	g     *genkit.Genkit
	model string
}

func newGenerator(g *genkit.Genkit, model string) *generator {
	return &generator{g: g, model: model}
}

func (gen *generator) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.model),
		ai.WithPrompt(prompt),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(temperature),
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", gen.model, err)
	}
	return resp.Text(), nil
}
