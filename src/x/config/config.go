// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package config implements configuration loading for services.
package config

import (
	"errors"
	"os"

	uberconfig "go.uber.org/config"
)

// errNoFilesToLoad is returned when attempting to load configuration and no
// files are provided.
var errNoFilesToLoad = errors.New("attempt to load config with no files")

// LoadFile loads a YAML configuration file into the supplied struct,
// expanding ${ENV_VAR} references from the environment.
func LoadFile(dst interface{}, file string) error {
	return LoadFiles(dst, file)
}

// LoadFiles loads a sequence of YAML configuration files into the supplied
// struct, with values from later files overriding earlier ones.
func LoadFiles(dst interface{}, files ...string) error {
	if len(files) == 0 {
		return errNoFilesToLoad
	}
	opts := make([]uberconfig.YAMLOption, 0, len(files)+1)
	opts = append(opts, uberconfig.Expand(os.LookupEnv))
	for _, name := range files {
		opts = append(opts, uberconfig.File(name))
	}
	provider, err := uberconfig.NewYAML(opts...)
	if err != nil {
		return err
	}
	return provider.Get(uberconfig.Root).Populate(dst)
}
