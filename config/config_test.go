/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bark.yaml")
	contents := "multicast: 239.1.1.1:9100\nformat: OPUS\nsource_delay: 20000000\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	c, err := ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "239.1.1.1:9100", c.Multicast)
	require.Equal(t, "OPUS", c.Format)
	require.Equal(t, 20*time.Millisecond, c.SourceDelay)
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig("/nonexistent/bark.yaml")
	require.Error(t, err)
}

func TestApplyEnvOnlyOverridesEmptyFields(t *testing.T) {
	t.Setenv("BARK_MULTICAST", "239.2.2.2:9200")
	t.Setenv("BARK_SOURCE_DELAY_MS", "15")
	t.Setenv("BARK_SOURCE_DEVICE", "from-env")

	c := &Config{SourceDevice: "already-set"}
	c.ApplyEnv()

	require.Equal(t, "239.2.2.2:9200", c.Multicast)
	require.Equal(t, 15*time.Millisecond, c.SourceDelay)
	require.Equal(t, "already-set", c.SourceDevice)
}
