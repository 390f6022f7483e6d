package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/catalog"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestProcessDetector_TeamViewerIsCritical(t *testing.T) {
	c := catalog.New([]models.Signature{
		{Name: "TeamViewer", ProcessNames: []string{"TeamViewer.exe"}, Severity: models.SeverityCritical},
	}, nil)
	d := NewProcessDetector(c, fakeLister{names: []string{"TeamViewer.exe", "explorer.exe"}})

	f := d.Detect(context.Background())

	assert.True(t, f.Matched)
	assert.Equal(t, models.SeverityCritical, f.Severity)
	assert.Equal(t, []string{"TeamViewer"}, f.Items)
	assert.Equal(t, models.SourceProcess, f.Source)
}

func TestProcessDetector_CaseInsensitiveExactMatch(t *testing.T) {
	c := catalog.New([]models.Signature{
		{Name: "AnyDesk", ProcessNames: []string{"AnyDesk.exe"}, Severity: models.SeverityHigh},
	}, nil)

	f := NewProcessDetector(c, fakeLister{names: []string{"anydesk.EXE"}}).Detect(context.Background())
	assert.True(t, f.Matched)

	f = NewProcessDetector(c, fakeLister{names: []string{"anydesk.exe.bak", "myanydesk.exe"}}).Detect(context.Background())
	assert.False(t, f.Matched)
	assert.Equal(t, "No remote desktop processes detected", f.Detail)
	assert.Equal(t, models.SeverityLow, f.Severity)
}

func TestProcessDetector_DuplicateNamesAndMaxSeverity(t *testing.T) {
	c := catalog.New([]models.Signature{
		{Name: "VNC", ProcessNames: []string{"winvnc.exe"}, Severity: models.SeverityMedium},
		{Name: "LogMeIn", ProcessNames: []string{"LogMeIn.exe"}, Severity: models.SeverityHigh},
		{Name: "VNC", ProcessNames: []string{"vncviewer.exe"}, Severity: models.SeverityCritical},
	}, nil)

	f := NewProcessDetector(c, fakeLister{names: []string{"winvnc.exe", "vncviewer.exe", "LogMeIn.exe"}}).Detect(context.Background())

	assert.True(t, f.Matched)
	assert.Equal(t, []string{"VNC", "LogMeIn"}, f.Items)
	assert.Equal(t, models.SeverityCritical, f.Severity)
	assert.Equal(t, "Found 2 remote desktop application(s) running: VNC, LogMeIn", f.Detail)
}

func TestProcessDetector_ListerFailure(t *testing.T) {
	d := NewProcessDetector(catalog.Default(), fakeLister{err: errors.New("access denied")})

	f := d.Detect(context.Background())

	assert.False(t, f.Matched)
	assert.Equal(t, models.SeverityLow, f.Severity)
	assert.Contains(t, f.Detail, "Error during process detection")
	assert.Contains(t, f.Detail, "access denied")
}
