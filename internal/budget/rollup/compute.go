package rollup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	campaigndomain "github.com/smallbiznis/podbudget/internal/campaign/domain"
)

// Growth returns (actual - previous) / previous, or nil when there is no
// previous actual to compare with.
func Growth(actual, previous int64) *float64 {
	if previous == 0 {
		return nil
	}
	g := float64(actual-previous) / float64(previous)
	return &g
}

type amounts struct {
	budget int64
	actual int64
}

type index struct {
	sellers     map[snowflake.ID]Seller
	agencies    map[snowflake.ID]agencydomain.Agency
	advertisers map[snowflake.ID]advertiserdomain.Advertiser
}

func newIndex(in Input) index {
	idx := index{
		sellers:     make(map[snowflake.ID]Seller, len(in.Sellers)),
		agencies:    make(map[snowflake.ID]agencydomain.Agency, len(in.Agencies)),
		advertisers: make(map[snowflake.ID]advertiserdomain.Advertiser, len(in.Advertisers)),
	}
	for _, s := range in.Sellers {
		idx.sellers[s.ID] = s
	}
	for _, a := range in.Agencies {
		idx.agencies[a.ID] = a
	}
	for _, a := range in.Advertisers {
		idx.advertisers[a.ID] = a
	}
	return idx
}

func (idx index) exists(entityType budgetdomain.EntityType, id snowflake.ID) bool {
	switch entityType {
	case budgetdomain.EntityAdvertiser:
		_, ok := idx.advertisers[id]
		return ok
	case budgetdomain.EntityAgency:
		_, ok := idx.agencies[id]
		return ok
	case budgetdomain.EntitySeller:
		_, ok := idx.sellers[id]
		return ok
	default:
		return false
	}
}

// Compute builds the Advertiser → Agency → Seller rollup.
//
// Only advertiser-level rows of active advertisers feed the totals. An
// advertiser with an agency rolls up through that agency's seller even when
// it also carries a seller of its own. Agency and seller rows become targets.
// Broken references are reported as anomalies and contribute nothing.
func Compute(in Input) Result {
	idx := newIndex(in)
	res := Result{
		Year:        in.Year,
		Month:       in.Month,
		CompareYear: in.CompareYear,
		Sellers:     []SellerRollup{},
		Anomalies:   []Anomaly{},
	}

	current := make(map[budgetdomain.Key]amounts)
	previous := make(map[budgetdomain.Key]amounts)
	for _, b := range in.Budgets {
		if !idx.exists(b.EntityType, b.EntityID) {
			res.Anomalies = append(res.Anomalies, Anomaly{
				Kind:       AnomalyDanglingEntity,
				EntityType: string(b.EntityType),
				EntityID:   b.EntityID,
				Message:    fmt.Sprintf("budget row %s references a missing %s", b.ID, b.EntityType),
			})
			continue
		}
		accumulate(current, b)
	}
	for _, b := range in.PreviousBudgets {
		if idx.exists(b.EntityType, b.EntityID) {
			accumulate(previous, b)
		}
	}

	from, to := in.Period()
	pipeline := make(map[snowflake.ID]int64)
	for _, c := range in.Campaigns {
		if c.Status != campaigndomain.StatusOpen || c.StartDate.Before(from) || !c.StartDate.Before(to) {
			continue
		}
		if _, ok := idx.advertisers[c.AdvertiserID]; !ok {
			res.Anomalies = append(res.Anomalies, Anomaly{
				Kind:        AnomalyDanglingEntity,
				EntityType:  "campaign",
				EntityID:    c.ID,
				ReferenceID: ptr(c.AdvertiserID),
				Message:     fmt.Sprintf("campaign %s references missing advertiser %s", c.ID, c.AdvertiserID),
			})
			continue
		}
		pipeline[c.AdvertiserID] += c.WeightedAmount()
	}

	sellers := make(map[snowflake.ID]*SellerRollup, len(in.Sellers))
	for _, s := range in.Sellers {
		sellers[s.ID] = &SellerRollup{
			ID:                s.ID,
			Name:              s.Name,
			Target:            target(current, budgetdomain.EntitySeller, s.ID),
			DirectAdvertisers: []AdvertiserRollup{},
			Agencies:          []AgencyRollup{},
		}
	}

	agencies := make(map[snowflake.ID]*AgencyRollup, len(in.Agencies))
	for _, a := range in.Agencies {
		if a.SellerID == nil {
			res.Anomalies = append(res.Anomalies, Anomaly{
				Kind:       AnomalyUnassigned,
				EntityType: budgetdomain.EntityAgency.String(),
				EntityID:   a.ID,
				Message:    fmt.Sprintf("agency %s has no seller", a.ID),
			})
			continue
		}
		if _, ok := sellers[*a.SellerID]; !ok {
			res.Anomalies = append(res.Anomalies, Anomaly{
				Kind:        AnomalyDanglingSeller,
				EntityType:  budgetdomain.EntityAgency.String(),
				EntityID:    a.ID,
				ReferenceID: ptr(*a.SellerID),
				Message:     fmt.Sprintf("agency %s references missing seller %s", a.ID, *a.SellerID),
				SellerID:    ptr(*a.SellerID),
			})
			continue
		}
		agencies[a.ID] = &AgencyRollup{
			ID:          a.ID,
			Name:        a.Name,
			Target:      target(current, budgetdomain.EntityAgency, a.ID),
			Advertisers: []AdvertiserRollup{},
		}
	}

	for _, adv := range in.Advertisers {
		if !adv.IsActive {
			continue
		}
		node := AdvertiserRollup{ID: adv.ID, Name: adv.Name}
		key := budgetdomain.Key{EntityType: budgetdomain.EntityAdvertiser, EntityID: adv.ID}
		cur := current[key]
		prev := previous[key]
		node.BudgetAmount = cur.budget
		node.ActualAmount = cur.actual
		node.PreviousBudget = prev.budget
		node.PreviousActual = prev.actual
		node.WeightedPipeline = pipeline[adv.ID]
		node.finish()

		switch {
		case adv.AgencyID != nil:
			agency, known := idx.agencies[*adv.AgencyID]
			if !known {
				res.Anomalies = append(res.Anomalies, Anomaly{
					Kind:        AnomalyDanglingAgency,
					EntityType:  budgetdomain.EntityAdvertiser.String(),
					EntityID:    adv.ID,
					ReferenceID: ptr(*adv.AgencyID),
					Message:     fmt.Sprintf("advertiser %s references missing agency %s", adv.ID, *adv.AgencyID),
					SellerID:    adv.SellerID,
				})
				continue
			}
			if rollup, ok := agencies[agency.ID]; ok {
				rollup.Advertisers = append(rollup.Advertisers, node)
			}
		case adv.SellerID != nil:
			seller, ok := sellers[*adv.SellerID]
			if !ok {
				res.Anomalies = append(res.Anomalies, Anomaly{
					Kind:        AnomalyDanglingSeller,
					EntityType:  budgetdomain.EntityAdvertiser.String(),
					EntityID:    adv.ID,
					ReferenceID: ptr(*adv.SellerID),
					Message:     fmt.Sprintf("advertiser %s references missing seller %s", adv.ID, *adv.SellerID),
					SellerID:    ptr(*adv.SellerID),
				})
				continue
			}
			seller.DirectAdvertisers = append(seller.DirectAdvertisers, node)
		default:
			res.Anomalies = append(res.Anomalies, Anomaly{
				Kind:       AnomalyUnassigned,
				EntityType: budgetdomain.EntityAdvertiser.String(),
				EntityID:   adv.ID,
				Message:    fmt.Sprintf("advertiser %s has no agency or seller", adv.ID),
			})
		}
	}

	for _, a := range in.Agencies {
		rollup, ok := agencies[a.ID]
		if !ok {
			continue
		}
		sortAdvertisers(rollup.Advertisers)
		for _, adv := range rollup.Advertisers {
			rollup.add(adv.Totals)
		}
		rollup.finish()
		seller := sellers[*a.SellerID]
		seller.Agencies = append(seller.Agencies, *rollup)
	}

	for _, s := range in.Sellers {
		seller := sellers[s.ID]
		if in.SellerID != nil && *in.SellerID != s.ID {
			continue
		}
		sortAdvertisers(seller.DirectAdvertisers)
		sort.SliceStable(seller.Agencies, func(i, j int) bool {
			return lessByName(seller.Agencies[i].Name, seller.Agencies[i].ID, seller.Agencies[j].Name, seller.Agencies[j].ID)
		})
		for _, adv := range seller.DirectAdvertisers {
			seller.add(adv.Totals)
		}
		for _, agency := range seller.Agencies {
			seller.add(agency.Totals)
		}
		seller.finish()
		res.GrandTotal.add(seller.Totals)
		res.Sellers = append(res.Sellers, *seller)
	}
	res.GrandTotal.finish()

	sort.SliceStable(res.Sellers, func(i, j int) bool {
		return lessByName(res.Sellers[i].Name, res.Sellers[i].ID, res.Sellers[j].Name, res.Sellers[j].ID)
	})

	if in.SellerID != nil {
		res.Anomalies = anomaliesForSeller(res.Anomalies, *in.SellerID)
	}
	sort.SliceStable(res.Anomalies, func(i, j int) bool {
		if res.Anomalies[i].Kind != res.Anomalies[j].Kind {
			return res.Anomalies[i].Kind < res.Anomalies[j].Kind
		}
		return res.Anomalies[i].EntityID < res.Anomalies[j].EntityID
	})
	return res
}

// accumulate sums every month of the period into one slot per entity.
func accumulate(into map[budgetdomain.Key]amounts, b budgetdomain.HierarchicalBudget) {
	key := budgetdomain.Key{EntityType: b.EntityType, EntityID: b.EntityID}
	a := into[key]
	a.budget += b.BudgetAmount
	a.actual += b.ActualAmount
	into[key] = a
}

func target(current map[budgetdomain.Key]amounts, entityType budgetdomain.EntityType, id snowflake.ID) *Target {
	a, ok := current[budgetdomain.Key{EntityType: entityType, EntityID: id}]
	if !ok {
		return nil
	}
	return &Target{BudgetAmount: a.budget, ActualAmount: a.actual, Variance: a.actual - a.budget}
}

func anomaliesForSeller(all []Anomaly, sellerID snowflake.ID) []Anomaly {
	filtered := make([]Anomaly, 0, len(all))
	for _, a := range all {
		if a.SellerID != nil && *a.SellerID == sellerID {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

func sortAdvertisers(items []AdvertiserRollup) {
	sort.SliceStable(items, func(i, j int) bool {
		return lessByName(items[i].Name, items[i].ID, items[j].Name, items[j].ID)
	})
}

func lessByName(nameA string, idA snowflake.ID, nameB string, idB snowflake.ID) bool {
	a, b := strings.ToLower(nameA), strings.ToLower(nameB)
	if a != b {
		return a < b
	}
	return idA < idB
}

func ptr(id snowflake.ID) *snowflake.ID {
	return &id
}
