package staging

import (
	"fmt"
	"sort"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// Packer groups classified items into stages and bin-packs each stage into visits
type Packer struct {
	cfg entities.ClinicConfiguration
}

// NewPacker validates the configuration and returns a packer for it
func NewPacker(cfg entities.ClinicConfiguration) (*Packer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Packer{cfg: cfg}, nil
}

type zone struct {
	side     entities.Side
	quadrant entities.Quadrant
}

// Pack returns the non-empty stages in ascending category order.
//
// Within a stage, items are split by (side, quadrant), each zone is sorted
// longest-first and filled greedily: a visit is closed when the next item would
// push it over the time budget. An empty visit always accepts an item, so a
// procedure longer than the budget gets a visit of its own.
func (p *Packer) Pack(items []entities.TreatmentItem) []entities.Stage {
	byCategory := make(map[int][]entities.TreatmentItem)
	for _, item := range items {
		byCategory[item.StageCategory] = append(byCategory[item.StageCategory], item)
	}

	categories := make([]int, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Ints(categories)

	stages := make([]entities.Stage, 0, len(categories))
	for _, category := range categories {
		stage := p.packStage(category, byCategory[category])
		if len(stage.Visits) > 0 {
			stages = append(stages, stage)
		}
	}
	return stages
}

func (p *Packer) packStage(category int, items []entities.TreatmentItem) entities.Stage {
	stage := entities.Stage{
		Number: category,
		Title:  StageTitle(category),
		Visits: []entities.Visit{},
	}

	var zones []zone
	byZone := make(map[zone][]entities.TreatmentItem)
	for _, item := range items {
		z := zone{side: item.Side, quadrant: item.Quadrant}
		if _, seen := byZone[z]; !seen {
			zones = append(zones, z)
		}
		byZone[z] = append(byZone[z], item)
	}

	visitNumber := 0
	emit := func(z zone, bucket []entities.TreatmentItem) {
		visitNumber++
		visit := p.buildVisit(category, visitNumber, z, bucket)
		stage.Visits = append(stage.Visits, visit)
		stage.TotalDurationMinutes += visit.DurationMinutes
		stage.TotalCost += visit.Cost
	}

	for _, z := range zones {
		group := append([]entities.TreatmentItem(nil), byZone[z]...)
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TimeEstimateMinutes > group[j].TimeEstimateMinutes
		})

		var bucket []entities.TreatmentItem
		bucketMinutes := 0
		for _, item := range group {
			if len(bucket) > 0 && bucketMinutes+item.TimeEstimateMinutes > p.cfg.VisitTimeBudgetMinutes {
				emit(z, bucket)
				bucket, bucketMinutes = nil, 0
			}
			bucket = append(bucket, item)
			bucketMinutes += item.TimeEstimateMinutes
		}
		if len(bucket) > 0 {
			emit(z, bucket)
		}
	}

	return stage
}

func (p *Packer) buildVisit(category, number int, z zone, treatments []entities.TreatmentItem) entities.Visit {
	visit := entities.Visit{
		Label:      VisitLabel(category, number),
		Treatments: treatments,
		Side:       z.side,
		Quadrant:   z.quadrant,
	}
	for _, t := range treatments {
		visit.DurationMinutes += t.TimeEstimateMinutes
		visit.Cost += t.Price
	}
	visit.ExplainNote = explainVisit(category, visit, p.cfg)
	return visit
}

// VisitLabel formats the label of the n-th visit of a stage
func VisitLabel(stage, visit int) string {
	return fmt.Sprintf("Stage %d — Visit %d", stage, visit)
}
