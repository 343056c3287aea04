/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package protocol

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Location struct {
	Address1       string   `json:"address1,omitempty"`
	Address2       string   `json:"address2,omitempty"`
	Address3       string   `json:"address3,omitempty"`
	City           string   `json:"city,omitempty"`
	ZipCode        string   `json:"zip_code,omitempty"`
	Country        string   `json:"country,omitempty"`
	State          string   `json:"state,omitempty"`
	DisplayAddress []string `json:"display_address,omitempty"`
}

type Category struct {
	Alias string `json:"alias"`
	Title string `json:"title"`
}

// Restaurant is a candidate as returned by the search provider. The list
// for a session is fixed once fetched.
type Restaurant struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Rating      float64     `json:"rating"`
	ReviewCount int         `json:"review_count"`
	Price       string      `json:"price,omitempty"`
	Location    Location    `json:"location"`
	ImageURL    string      `json:"image_url,omitempty"`
	URL         string      `json:"url,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
	Categories  []Category  `json:"categories,omitempty"`
	Distance    float64     `json:"distance,omitempty"` // meters from the search center
}

type OpenHours struct {
	Day         int    `json:"day"`
	Start       string `json:"start"`
	End         string `json:"end"`
	IsOvernight bool   `json:"is_overnight"`
}

type Hours struct {
	HoursType string      `json:"hours_type"`
	IsOpenNow bool        `json:"is_open_now"`
	Open      []OpenHours `json:"open"`
}

type Review struct {
	ID          string  `json:"id"`
	Rating      float64 `json:"rating"`
	Text        string  `json:"text"`
	TimeCreated string  `json:"time_created"`
	URL         string  `json:"url,omitempty"`
	User        struct {
		Name string `json:"name"`
	} `json:"user"`
}

// RestaurantDetails is the expanded record shown on a restaurant card.
type RestaurantDetails struct {
	Restaurant
	Phone        string   `json:"phone,omitempty"`
	DisplayPhone string   `json:"display_phone,omitempty"`
	Photos       []string `json:"photos"`
	Hours        []Hours  `json:"hours,omitempty"`
	Reviews      []Review `json:"reviews"`
}

// Address returns the best single-line address for display.
func (r Restaurant) Address() string {
	if len(r.Location.DisplayAddress) > 0 {
		out := r.Location.DisplayAddress[0]
		for _, line := range r.Location.DisplayAddress[1:] {
			out += ", " + line
		}
		return out
	}
	return r.Location.Address1
}
