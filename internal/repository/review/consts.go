package review

const (
	// collection names, reviews live under their product
	productNode string = "products"
	reviewNode  string = "reviews"

	// Fields' name and path
	ProductIdFieldPath         string = "productId"
	SentimentFieldPath         string = "sentiment"
	SentimentScoreFieldPath    string = "sentimentScore"
	CreatedAtPlatformFieldPath string = "createdAtPlatform"
	UpdatedAtFieldPath         string = "updatedAt"
)
