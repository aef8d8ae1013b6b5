package domain

// PriceRecord is one entry of the materials price reference
type PriceRecord struct {
	Material    string    `json:"material"`
	Unit        string    `json:"unit"`
	PriceINR    float64   `json:"price_inr"`
	Source      string    `json:"source"`
	ItemCode    string    `json:"item_code"`
	Category    string    `json:"category"`
	FetchedDate Timestamp `json:"fetched_date"`
	Confidence  float64   `json:"confidence"`
	Description string    `json:"description"`
}

type PriceSearch struct {
	Success bool          `json:"success"`
	Query   string        `json:"query"`
	Count   int           `json:"count"`
	Results []PriceRecord `json:"results"`
}

type PriceLookup struct {
	Success  bool        `json:"success"`
	Material PriceRecord `json:"material"`
}

type PriceCategory struct {
	Success   bool          `json:"success"`
	Category  string        `json:"category"`
	Count     int           `json:"count"`
	Materials []PriceRecord `json:"materials"`
}

type PriceCategories struct {
	Success    bool     `json:"success"`
	Count      int      `json:"count"`
	Categories []string `json:"categories"`
}

// PriceStatistics summarises the price reference. Categories is a count.
type PriceStatistics struct {
	TotalMaterials int     `json:"total_materials"`
	MinPrice       float64 `json:"min_price"`
	MaxPrice       float64 `json:"max_price"`
	AvgPrice       float64 `json:"avg_price"`
	Categories     int     `json:"categories"`
}

type PriceStatisticsResponse struct {
	Success    bool            `json:"success"`
	Statistics PriceStatistics `json:"statistics"`
}

type PricePage struct {
	Success   bool          `json:"success"`
	Materials []PriceRecord `json:"materials"`
	Total     int           `json:"total"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
	HasMore   bool          `json:"has_more"`
}
