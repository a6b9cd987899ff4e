package tools

import (
	"context"
	"strings"
)

// MenuToolName is the name the generator uses to request a menu.
const MenuToolName = "getMenu"

// NoMenuFound is returned for categories without a menu.
const NoMenuFound = "No menu found"

// DefaultMenus is today's menu keyed by meal category.
var DefaultMenus = map[string]string{
	"breakfast": "Idli, Dosa, Paratha, Poha, Upma, Omelette, Sandwich, Pancakes, Cereal, Fruits",
	"lunch":     "Rice, Dal, Roti, Paneer Curry, Vegetable Sabzi, Salad, Curd, Rajma, Chole, Fish Curry",
	"dinner":    "Chapati, Jeera Rice, Dal Tadka, Chicken Curry, Paneer Butter Masala, Mixed Veg, Khichdi, Pulao, Soup, Salad",
}

// MenuRequest is the decoded getMenu argument set.
type MenuRequest struct {
	Category string `mapstructure:"category"`
}

// Normalize case-folds and trims the category.
func (r *MenuRequest) Normalize() {
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
}

// MenuTool returns the getMenu tool over menus. A nil map uses
// DefaultMenus. Keys are matched case-insensitively.
func MenuTool(menus map[string]string) ToolSpec {
	if menus == nil {
		menus = DefaultMenus
	}
	index := make(map[string]string, len(menus))
	for k, v := range menus {
		index[strings.ToLower(strings.TrimSpace(k))] = v
	}

	return ToolSpec{
		Name:        MenuToolName,
		Description: "Returns the final answer today's menu for the given category (breakfast, dinner, lunch). Use this tool to answer the question directly.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"description": "Type of food. Example: breakfast, dinner, lunch",
				},
			},
			"required": []string{"category"},
		},
		Miss: NoMenuFound,
		Executor: Typed(func(_ context.Context, req MenuRequest) (string, error) {
			if menu, ok := index[req.Category]; ok {
				return menu, nil
			}
			return NoMenuFound, nil
		}),
	}
}

// NewDefaultRegistry returns a registry holding the built-in tools.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.Register(MenuTool(nil)); err != nil {
		return nil, err
	}
	return r, nil
}
