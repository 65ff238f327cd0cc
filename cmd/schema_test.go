package cmd

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/formatter"
	"github.com/kyleking/energy-expert/internal/testutil"
)

func TestRunSchema(t *testing.T) {
	catalog := testutil.NewMockCatalog(testutil.NewEnergySchema(t))

	var buf bytes.Buffer
	require.NoError(t, runSchema(context.Background(), &buf, catalog, formatter.FormatText))

	assert.Contains(t, buf.String(), "sites\n  site_id integer\n  region character varying\n  ac_units integer\n")
	assert.Equal(t, 1, catalog.CallCount())
}

func TestRunSchemaCatalogError(t *testing.T) {
	catalog := testutil.NewFailingCatalog(errors.Wrap(fmt.Errorf("connection refused"), errors.ErrTypeCatalog, "failed to read schema"))

	var buf bytes.Buffer
	err := runSchema(context.Background(), &buf, catalog, formatter.FormatText)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeCatalog))
	assert.Empty(t, buf.String())
}
