package dto

// CounterDTO is the counter as seen by the business layer and the cache
type CounterDTO struct {
	ID        uint   `json:"id"`
	Count     int64  `json:"count"`
	UpdatedAt string `json:"updated_at"`
}

// CounterResponse is the payload returned by the counter endpoints
type CounterResponse struct {
	Count int64 `json:"count" example:"3"`
}

// WelcomeProps are the props of the welcome page
type WelcomeProps struct {
	Count int64 `json:"count" example:"0"`
}

// PageModel is the page object handed to the renderer (Inertia page shape)
type PageModel struct {
	Component string       `json:"component" example:"welcome"`
	Props     WelcomeProps `json:"props"`
	URL       string       `json:"url" example:"/"`
	Version   string       `json:"version" example:"1.0.0"`
}
