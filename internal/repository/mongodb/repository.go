package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/mamadbah2/inventaire/internal/domain/models"
	"github.com/mamadbah2/inventaire/internal/repository"
)

const (
	articlesCollection = "articles"
	countersCollection = "counters"
	tupleIndexName     = "article_tuple"
)

// MongoDBRepository implements repository.Store for MongoDB. Articles get
// sequential numeric identifiers from a counters document, giving the same QR
// image names as the SQL backend.
type MongoDBRepository struct {
	client *mongo.Client
	dbName string
	logger *zap.Logger
}

var _ repository.Store = (*MongoDBRepository)(nil)

// articleDocument is the stored shape of an article.
type articleDocument struct {
	ID          uint       `bson:"_id"`
	Designation string     `bson:"designation"`
	Quantity    int        `bson:"qte"`
	AcquiredOn  *time.Time `bson:"date_acquisition"`
	Family      string     `bson:"famille"`
	Location    string     `bson:"emplacement"`
	Brand       string     `bson:"marque"`
	Model       string     `bson:"model"`
	Prefix      string     `bson:"prefixe"`
	QRCode      string     `bson:"qr_code,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	r := &MongoDBRepository{client: client, dbName: dbName, logger: logger}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoDBRepository) articles() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(articlesCollection)
}

// ensureIndexes indexes the import tuple used by GetOrCreate lookups.
func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	keys := bson.D{}
	for _, field := range tupleKeys {
		keys = append(keys, bson.E{Key: field, Value: 1})
	}
	_, err := r.articles().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(tupleIndexName),
	})
	if err != nil {
		return fmt.Errorf("create article index: %w", err)
	}
	return nil
}

// GetOrCreate finds the article matching the tuple or inserts it. Imports are
// sequential, so the lookup and the insert are not wrapped in a session.
func (r *MongoDBRepository) GetOrCreate(ctx context.Context, fields models.Fields) (*models.Article, bool, error) {
	if err := fields.Validate(); err != nil {
		return nil, false, err
	}
	fields = fields.Normalized()

	existing, err := r.findByTuple(ctx, fields)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	article, err := r.insert(ctx, fields)
	if err != nil {
		return nil, false, err
	}
	return article, true, nil
}

// Create inserts a new article without looking for an existing match.
func (r *MongoDBRepository) Create(ctx context.Context, fields models.Fields) (*models.Article, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	return r.insert(ctx, fields.Normalized())
}

func (r *MongoDBRepository) Get(ctx context.Context, id uint) (*models.Article, error) {
	var doc articleDocument
	err := r.articles().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load article %d: %w", id, err)
	}
	return doc.article(), nil
}

func (r *MongoDBRepository) List(ctx context.Context, filter repository.ListFilter) ([]models.Article, int64, error) {
	query := listQuery(filter)

	total, err := r.articles().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(int64(filter.Offset))
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cursor, err := r.articles().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list articles: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []articleDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode articles: %w", err)
	}

	articles := make([]models.Article, 0, len(docs))
	for _, doc := range docs {
		articles = append(articles, *doc.article())
	}
	return articles, total, nil
}

// SetQRCode stores the QR path unless the article already has one.
func (r *MongoDBRepository) SetQRCode(ctx context.Context, id uint, path string) error {
	if path == "" {
		return errors.New("qr code path must not be empty")
	}

	res, err := r.articles().UpdateOne(ctx,
		bson.M{"_id": id, "$or": bson.A{bson.M{"qr_code": bson.M{"$exists": false}}, bson.M{"qr_code": ""}}},
		bson.M{"$set": bson.M{"qr_code": path, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update qr code of article %d: %w", id, err)
	}
	if res.ModifiedCount == 1 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return repository.ErrQRCodeAlreadySet
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) findByTuple(ctx context.Context, fields models.Fields) (*models.Article, error) {
	var doc articleDocument
	if err := r.articles().FindOne(ctx, tupleFilter(fields)).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.article(), nil
}

func (r *MongoDBRepository) insert(ctx context.Context, fields models.Fields) (*models.Article, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := newDocument(id, fields, now)
	if _, err := r.articles().InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert article: %w", err)
	}

	r.logger.Debug("article inserted", zap.Uint("id", id))
	return doc.article(), nil
}

// nextID atomically increments the article sequence.
func (r *MongoDBRepository) nextID(ctx context.Context) (uint, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.client.Database(r.dbName).Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": articlesCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate article id: %w", err)
	}
	return uint(counter.Seq), nil
}

var tupleKeys = []string{"designation", "qte", "date_acquisition", "famille", "emplacement", "marque", "model", "prefixe"}

// tupleFilter matches all eight fields exactly; a nil date matches only a
// null date.
func tupleFilter(f models.Fields) bson.D {
	var date any
	if f.AcquiredOn != nil {
		date = *f.AcquiredOn
	}
	return bson.D{
		{Key: "designation", Value: f.Designation},
		{Key: "qte", Value: f.Quantity},
		{Key: "date_acquisition", Value: date},
		{Key: "famille", Value: f.Family},
		{Key: "emplacement", Value: f.Location},
		{Key: "marque", Value: f.Brand},
		{Key: "model", Value: f.Model},
		{Key: "prefixe", Value: f.Prefix},
	}
}

func listQuery(filter repository.ListFilter) bson.M {
	query := bson.M{}
	if filter.Family != "" {
		query["famille"] = filter.Family
	}
	if filter.MissingQRCode {
		query["$or"] = bson.A{bson.M{"qr_code": bson.M{"$exists": false}}, bson.M{"qr_code": ""}}
	}
	return query
}

func newDocument(id uint, f models.Fields, now time.Time) articleDocument {
	return articleDocument{
		ID:          id,
		Designation: f.Designation,
		Quantity:    f.Quantity,
		AcquiredOn:  f.AcquiredOn,
		Family:      f.Family,
		Location:    f.Location,
		Brand:       f.Brand,
		Model:       f.Model,
		Prefix:      f.Prefix,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (d articleDocument) article() *models.Article {
	a := &models.Article{
		ID:          d.ID,
		Designation: d.Designation,
		Quantity:    d.Quantity,
		Family:      d.Family,
		Location:    d.Location,
		Brand:       d.Brand,
		Model:       d.Model,
		Prefix:      d.Prefix,
		QRCode:      d.QRCode,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.AcquiredOn != nil {
		date := datatypes.Date(models.DateOnly(d.AcquiredOn.UTC()))
		a.AcquiredOn = &date
	}
	return a
}
