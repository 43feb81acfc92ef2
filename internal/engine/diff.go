package engine

import "rollplane/internal/domain"

// diffSpecs matches old and new specs by id and classifies the difference.
// Only a changed sheet reference on a ChangeDatabaseConfig counts as an
// update; everything else is either removed or added.
func diffSpecs(oldSteps, newSteps []domain.Step) (removed, added, updated []domain.Spec) {
	oldSpecs := make(map[string]domain.Spec)
	newSpecs := make(map[string]domain.Spec)
	for _, step := range oldSteps {
		for _, spec := range step.Specs {
			oldSpecs[spec.ID] = spec
		}
	}
	for _, step := range newSteps {
		for _, spec := range step.Specs {
			newSpecs[spec.ID] = spec
		}
	}
	for _, step := range oldSteps {
		for _, spec := range step.Specs {
			if _, ok := newSpecs[spec.ID]; !ok {
				removed = append(removed, spec)
			}
		}
	}
	for _, step := range newSteps {
		for _, spec := range step.Specs {
			if _, ok := oldSpecs[spec.ID]; !ok {
				added = append(added, spec)
				continue
			}
			if isSpecSheetUpdated(oldSpecs[spec.ID], spec) {
				updated = append(updated, spec)
			}
		}
	}
	return removed, added, updated
}

func isSpecSheetUpdated(specA, specB domain.Spec) bool {
	if specA.ChangeDatabase == nil || specB.ChangeDatabase == nil {
		return false
	}
	return specA.ChangeDatabase.Sheet != specB.ChangeDatabase.Sheet
}
