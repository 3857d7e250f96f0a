package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zatekoja/dentalplan/internal/application/services"
	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// readTreatments loads a treatments file. JSON and YAML files may hold either a
// bare list of treatments or a staging request object. "-" reads stdin.
func readTreatments(path string, stdin io.Reader) (*services.StagePlanRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read treatments: %w", err)
	}

	if isYAML(path) {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse treatments YAML: %w", err)
		}
	}

	data = bytes.TrimSpace(data)
	req := &services.StagePlanRequest{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return req, nil
	}

	if data[0] == '[' {
		err = json.Unmarshal(data, &req.Treatments)
	} else {
		err = json.Unmarshal(data, req)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse treatments: %w", err)
	}
	return req, nil
}

// readClinicOverrides loads a clinic override file (YAML or JSON).
// Unknown knobs are rejected.
func readClinicOverrides(path string) (*entities.ClinicConfigurationOverrides, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read clinic configuration: %w", err)
	}

	overrides := &entities.ClinicConfigurationOverrides{}
	if err := v.UnmarshalExact(overrides); err != nil {
		return nil, fmt.Errorf("failed to decode clinic configuration %s: %w", path, err)
	}
	return overrides, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// yamlToJSON re-encodes YAML as JSON so the lenient JSON decoders of the
// entities apply to YAML input too
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// writeOutput prints v as indented JSON or as YAML with the JSON field names
func writeOutput(w io.Writer, format string, v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	switch format {
	case "json":
		_, err = fmt.Fprintln(w, string(encoded))
		return err
	case "yaml":
		var doc interface{}
		if err := json.Unmarshal(encoded, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %q (use json or yaml)", format)
}
