// Package reference holds the embedded reference data (decision graph,
// document templates, question bank, checkpoint catalog) and builds the
// validated, read-only engines from it.
package reference

import (
	"bytes"
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"raise-service/internal/assessment"
	"raise-service/internal/compliance"
	"raise-service/internal/ethics"
)

//go:embed data/*.yaml
var files embed.FS

// Data is the full set of engines built from reference data.
type Data struct {
	Graph   *ethics.Graph
	Bank    *assessment.Bank
	Catalog *compliance.Catalog
}

// Load decodes and validates the embedded reference data. It is meant to be
// called once at process start; any error is a defect in the data.
func Load() (*Data, error) {
	var def ethics.Definition
	if err := decode("data/graph.yaml", &def); err != nil {
		return nil, err
	}
	var tpl struct {
		Templates []ethics.TemplateDefinition `yaml:"templates"`
	}
	if err := decode("data/templates.yaml", &tpl); err != nil {
		return nil, err
	}
	def.Templates = tpl.Templates

	graph, err := ethics.NewGraph(def)
	if err != nil {
		return nil, fmt.Errorf("graph.yaml: %w", err)
	}

	var bankDef assessment.BankDefinition
	if err := decode("data/assessment.yaml", &bankDef); err != nil {
		return nil, err
	}
	bank, err := assessment.NewBank(bankDef)
	if err != nil {
		return nil, fmt.Errorf("assessment.yaml: %w", err)
	}

	var catDef compliance.CatalogDefinition
	if err := decode("data/checkpoints.yaml", &catDef); err != nil {
		return nil, err
	}
	catalog, err := compliance.NewCatalog(catDef)
	if err != nil {
		return nil, fmt.Errorf("checkpoints.yaml: %w", err)
	}

	return &Data{Graph: graph, Bank: bank, Catalog: catalog}, nil
}

// MustLoad is Load for tests and init paths where a defect is fatal.
func MustLoad() *Data {
	d, err := Load()
	if err != nil {
		panic(err)
	}
	return d
}

func decode(name string, out any) error {
	raw, err := files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
