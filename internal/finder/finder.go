// Package finder maps BOSS observations to their paths on the SAS server.
package finder

import (
	"errors"
	"fmt"
	"path"

	"github.com/datallboy/bossfetch/internal/domain"
)

var ErrInvalidPlate = errors.New("invalid plate number")

// Finder resolves remote paths below one redux version.
type Finder struct {
	sasRoot      string
	reduxVersion string
	reduxBase    string
}

// New returns a Finder for sasRoot (e.g. /sas/dr12) and reduxVersion
// (e.g. v5_7_0).
func New(sasRoot, reduxVersion string) (*Finder, error) {
	if sasRoot == "" {
		return nil, errors.New("no SAS root specified: try setting $BOSS_SAS_ROOT")
	}
	if reduxVersion == "" {
		return nil, errors.New("no redux version specified: try setting $BOSS_REDUX_VERSION")
	}

	return &Finder{
		sasRoot:      sasRoot,
		reduxVersion: reduxVersion,
		reduxBase:    path.Join(sasRoot, "boss", "spectro", "redux", reduxVersion),
	}, nil
}

func (f *Finder) ReduxBase() string { return f.reduxBase }

// PlatePath returns the directory holding the files for plate.
func (f *Finder) PlatePath(plate int) (domain.RemoteItem, error) {
	if plate <= 0 {
		return "", fmt.Errorf("%w (%d): must be > 0", ErrInvalidPlate, plate)
	}
	return domain.RemoteItem(path.Join(f.reduxBase, fmt.Sprintf("%04d", plate))), nil
}

// SpecPath returns the per-fiber spectrum file of one observation.
func (f *Finder) SpecPath(plate, mjd, fiber int, lite bool) (domain.RemoteItem, error) {
	if plate <= 0 {
		return "", fmt.Errorf("%w (%d): must be > 0", ErrInvalidPlate, plate)
	}

	dir := path.Join(f.reduxBase, "spectra")
	if lite {
		dir = path.Join(dir, "lite")
	}
	name := fmt.Sprintf("spec-%04d-%d-%04d.fits", plate, mjd, fiber)

	return domain.RemoteItem(path.Join(dir, fmt.Sprintf("%04d", plate), name)), nil
}

// SpAllPath returns the spAll metadata file. The lite flavour is a gzipped
// ASCII table, the full one is FITS.
func (f *Finder) SpAllPath(lite bool) domain.RemoteItem {
	name := "spAll-" + f.reduxVersion + ".fits"
	if lite {
		name = "spAll-" + f.reduxVersion + ".dat.gz"
	}
	return domain.RemoteItem(path.Join(f.reduxBase, name))
}
