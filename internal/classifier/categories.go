package classifier

import (
	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/features"
)

// DefaultCategoryID is the category assigned when classification fails.
const DefaultCategoryID = "active_milk_mob"

// DefaultCategories returns the reference Milk Mob table in scoring order.
func DefaultCategories() []domain.Category {
	return []domain.Category{
		{
			ID:          "active_milk_mob",
			Name:        "Active Milk Mob",
			Description: "Sports and fitness enthusiasts enjoying milk",
			Keywords: features.Terms("sports", "exercise", "workout", "fitness", "gym", "athlete",
				"running", "jumping", "training", "outdoor", "active"),
		},
		{
			ID:          "dance_milk_mob",
			Name:        "Dance Milk Mob",
			Description: "Creative dancers incorporating milk",
			Keywords: features.Terms("dance", "dancing", "choreography", "music", "rhythm",
				"performance", "routine", "moves", "dancer", "stage"),
		},
		{
			ID:          "chef_milk_mob",
			Name:        "Chef Milk Mob",
			Description: "Culinary creations featuring milk",
			Keywords: features.Terms("cooking", "baking", "recipe", "chef", "kitchen", "food",
				"culinary", "ingredients", "meal", "dish", "restaurant"),
		},
		{
			ID:          "comedy_milk_mob",
			Name:        "Comedy Milk Mob",
			Description: "Humorous and entertaining milk moments",
			Keywords: features.Terms("funny", "comedy", "joke", "laugh", "humor", "prank",
				"entertaining", "laughter", "silly", "amusing", "comedic"),
		},
		{
			ID:          "art_milk_mob",
			Name:        "Art Milk Mob",
			Description: "Artistic expressions with milk",
			Keywords: features.Terms("art", "painting", "creative", "artistic", "design", "craft",
				"creation", "colors", "sculpture", "visual", "drawing"),
		},
		{
			ID:          "science_milk_mob",
			Name:        "Science Milk Mob",
			Description: "Scientific experiments and discoveries with milk",
			Keywords: features.Terms("science", "experiment", "laboratory", "discovery", "research",
				"chemistry", "physics", "reaction", "testing", "analysis"),
		},
		{
			ID:          "extreme_milk_mob",
			Name:        "Extreme Milk Mob",
			Description: "Adventurous and daring milk challenges",
			Keywords: features.Terms("extreme", "challenge", "adventure", "daring", "stunt",
				"dangerous", "risky", "impressive", "thrilling", "exciting"),
		},
	}
}
