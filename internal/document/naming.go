package document

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/pkg/utils"
)

// MaxCopyIndex bounds the copy suffix search
const MaxCopyIndex = 999

// Existence reports whether a path is already taken
type Existence interface {
	Exists(ctx context.Context, path string) bool
}

// Resolved is the location chosen for one rendered copy
type Resolved struct {
	Dir       string
	FileName  string
	Path      string
	CopyIndex int
}

// FileName returns receipt_{patient}_{receipt}_{YYYYMMDD}_p{NN}.pdf for r. The date is
// the issue day in loc, so the name does not depend on the zone IssuedAt carries.
func FileName(r *entity.Receipt, copyIndex int, loc *time.Location) string {
	patient := entity.DefaultPatientSlug
	if r.PatientID != 0 {
		patient = utils.Slugify(strconv.FormatInt(r.PatientID, 10), entity.DefaultPatientSlug)
	}
	receipt := utils.Slugify(r.ID, entity.DefaultReceiptSlug)
	return fmt.Sprintf("receipt_%s_%s_%s_p%02d.pdf", patient, receipt, entity.InLocation(r.IssuedAt, loc).Format("20060102"), copyIndex)
}

// Resolver picks collision-free output paths
type Resolver struct {
	exists Existence
	loc    *time.Location
}

// NewResolver creates a resolver checking paths against exists, dating names in loc
func NewResolver(exists Existence, loc *time.Location) *Resolver {
	return &Resolver{exists: exists, loc: loc}
}

// Resolve returns the output path for r under dir. An explicit copyIndex always maps
// to the same path so regenerating a copy overwrites only itself. A nil copyIndex
// takes the first index from 01 whose file does not exist yet.
func (rs *Resolver) Resolve(ctx context.Context, dir string, r *entity.Receipt, copyIndex *int) (Resolved, error) {
	if copyIndex != nil {
		if *copyIndex < 1 || *copyIndex > MaxCopyIndex {
			return Resolved{}, apperr.Validation("resolve_filename", "copy index must be between 1 and %d, got %d", MaxCopyIndex, *copyIndex)
		}
		return rs.resolved(dir, r, *copyIndex), nil
	}

	for idx := 1; idx <= MaxCopyIndex; idx++ {
		res := rs.resolved(dir, r, idx)
		if !rs.exists.Exists(ctx, res.Path) {
			return res, nil
		}
	}
	return Resolved{}, apperr.Render("resolve_filename", fmt.Sprintf("all %d copies of receipt %s are taken", MaxCopyIndex, r.ID), nil)
}

func (rs *Resolver) resolved(dir string, r *entity.Receipt, idx int) Resolved {
	name := FileName(r, idx, rs.loc)
	return Resolved{Dir: dir, FileName: name, Path: path.Join(dir, name), CopyIndex: idx}
}
