package definition

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowvia/flowvia/model"
)

const researchYAML = `
id: research
description: gather facts and analyze them
initialInputs:
  - topic
steps:
  - name: gather
    agentType: collector
    requiredInputs: [topic]
    outputs: [facts]
  - name: analyze
    agentType: analyst
    requiredInputs: [facts]
    outputs: [findings]
dependencies:
  analyze:
    - gather
`

func TestService_Load(t *testing.T) {
	dir := t.TempDir()
	URL := filepath.Join(dir, "research.yaml")
	assert.NoError(t, os.WriteFile(URL, []byte(researchYAML), 0o644))

	service := New()
	definition, err := service.Load(context.Background(), URL)
	assert.NoError(t, err)
	assert.Equal(t, "research", definition.ID)
	assert.Equal(t, "research", definition.Name)
	assert.Equal(t, []string{"gather", "analyze"}, definition.StepNames())
	assert.Equal(t, []string{"gather"}, definition.Dependencies["analyze"])
	assert.Equal(t, []string{"facts"}, definition.Lookup("gather").Outputs)

	cached, err := service.Lookup("research")
	assert.NoError(t, err)
	assert.Same(t, definition, cached)

	_, err = service.Lookup("ghost")
	assert.Error(t, err)
}

func TestService_LoadNamesFromURL(t *testing.T) {
	dir := t.TempDir()
	URL := filepath.Join(dir, "anonymous.yaml")
	document := `
steps:
  - name: only
    agentType: nop
`
	assert.NoError(t, os.WriteFile(URL, []byte(document), 0o644))

	service := New()
	definition, err := service.Load(context.Background(), URL)
	assert.NoError(t, err)
	assert.Equal(t, "anonymous", definition.ID)
	assert.Equal(t, "anonymous", definition.Name)
}

func TestService_LoadInvalid(t *testing.T) {
	dir := t.TempDir()
	URL := filepath.Join(dir, "cyclic.yaml")
	document := `
id: cyclic
steps:
  - name: a
    agentType: nop
  - name: b
    agentType: nop
dependencies:
  a: [b]
  b: [a]
`
	assert.NoError(t, os.WriteFile(URL, []byte(document), 0o644))

	service := New()
	_, err := service.Load(context.Background(), URL)
	assert.Error(t, err)
	_, err = service.Lookup("cyclic")
	assert.Error(t, err)
}

func TestService_Upsert(t *testing.T) {
	dir := t.TempDir()
	URL := filepath.Join(dir, "built.yaml")

	definition := model.NewDefinition("built").WithInitialInputs("seed")
	definition.NewStepFor("grow", "gardener").
		WithRequiredInputs("seed").
		WithOutputs("plant")

	service := New()
	assert.NoError(t, service.Upsert(context.Background(), URL, definition))

	reloaded, err := New().Load(context.Background(), URL)
	assert.NoError(t, err)
	assert.Equal(t, "built", reloaded.ID)
	assert.Equal(t, []string{"grow"}, reloaded.StepNames())
	assert.Equal(t, []string{"seed"}, reloaded.Lookup("grow").RequiredInputs)
}

func TestService_LoadAll(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "research.yaml"), []byte(researchYAML), 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	service := New()
	definitions, err := service.LoadAll(context.Background(), dir)
	assert.NoError(t, err)
	assert.Len(t, definitions, 1)
	assert.Equal(t, "research", definitions[0].ID)
}
