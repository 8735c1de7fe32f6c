package product

import "time"

const (
	// collection name
	productNode string = "products"

	// Fields' name and path
	IdFieldPath                string = "id"
	NameFieldPath              string = "name"
	PlatformFieldPath          string = "platform"
	PlatformProductIdFieldPath string = "platformProductId"
	TotalReviewsFieldPath      string = "totalReviews"
	PositiveCountFieldPath     string = "positiveCount"
	NegativeCountFieldPath     string = "negativeCount"
	NeutralCountFieldPath      string = "neutralCount"
	LastScrapedFieldPath       string = "lastScraped"
	ScrapeStatusFieldPath      string = "scrapeStatus"
	ReviewsFieldPath           string = "reviews"
	AwaitingBackfillFieldPath  string = "awaitingBackfill"
	CreatedAtFieldPath         string = "createdAt"
	UpdatedAtFieldPath         string = "updatedAt"

	// It must not exceed the write timeout of the database.firestore.notifyOnChanges
	channelWriteTimeout time.Duration = time.Second * 3
)
