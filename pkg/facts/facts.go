package facts

import "strings"

// Restaurant holds the business facts scripted replies are rendered from.
type Restaurant struct {
	Name           string `mapstructure:"name"`
	Address        string `mapstructure:"address"`
	Hours          string `mapstructure:"hours"`
	Menu           string `mapstructure:"menu"`
	DeliveryPolicy string `mapstructure:"delivery_policy"`
	Phone          string `mapstructure:"phone"`
}

// Defaults returns placeholder facts used when no configuration is provided.
func Defaults() Restaurant {
	return Restaurant{
		Name:           "Your Restaurant Name",
		Address:        "123 Restaurant Street, City, State 12345",
		Hours:          "Open from 10 AM to 10 PM daily",
		Menu:           "Appetizers, Main Courses, Desserts, Beverages",
		DeliveryPolicy: "We offer delivery within a 5-mile radius from 11 AM to 9 PM",
		Phone:          "Phone Number",
	}
}

// WithDefaults fills any empty field from Defaults.
func (r Restaurant) WithDefaults() Restaurant {
	d := Defaults()
	if strings.TrimSpace(r.Name) == "" {
		r.Name = d.Name
	}
	if strings.TrimSpace(r.Address) == "" {
		r.Address = d.Address
	}
	if strings.TrimSpace(r.Hours) == "" {
		r.Hours = d.Hours
	}
	if strings.TrimSpace(r.Menu) == "" {
		r.Menu = d.Menu
	}
	if strings.TrimSpace(r.DeliveryPolicy) == "" {
		r.DeliveryPolicy = d.DeliveryPolicy
	}
	if strings.TrimSpace(r.Phone) == "" {
		r.Phone = d.Phone
	}
	return r
}

// MenuCategories splits the menu description into its category list.
func (r Restaurant) MenuCategories() []string {
	return strings.Split(r.Menu, ", ")
}
