package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	VehiclesName = "vehicles"
	TasksName    = "tasks"
	HistoryName  = "history"
	InvoicesName = "invoices"
	UsersName    = "users"
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// Store groups the collections of one database.
type Store struct {
	Vehicles *MongoVehicleCollection
	Tasks    *MongoTaskCollection
	History  *MongoHistoryCollection
	Invoices *MongoInvoiceCollection
	Users    *MongoUserCollection
}

// NewStore binds every collection of database.
func NewStore(database *mongo.Database) *Store {
	return &Store{
		Vehicles: &MongoVehicleCollection{Collection: database.Collection(VehiclesName)},
		Tasks:    &MongoTaskCollection{Collection: database.Collection(TasksName)},
		History:  &MongoHistoryCollection{Collection: database.Collection(HistoryName)},
		Invoices: &MongoInvoiceCollection{Collection: database.Collection(InvoicesName)},
		Users:    &MongoUserCollection{Collection: database.Collection(UsersName)},
	}
}

// EnsureIndexes creates the secondary indexes the queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.History.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "mileage", Value: -1}},
	}); err != nil {
		return fmt.Errorf("history index: %w", err)
	}
	if _, err := s.Invoices.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: -1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("invoices index: %w", err)
	}
	if _, err := s.Users.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := s.Users.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "refresh_token_hash", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	}); err != nil {
		return fmt.Errorf("refresh token index: %w", err)
	}
	return nil
}

// MongoVehicleCollection implements VehicleCollection for MongoDB.
type MongoVehicleCollection struct {
	Collection *mongo.Collection
}

// FindVehicle finds a vehicle by its ID.
func (c *MongoVehicleCollection) FindVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var vehicle models.Vehicle
	err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find vehicle %s: %w", id, err)
	}
	return &vehicle, nil
}

// SaveVehicle replaces the vehicle document, creating it on first write. The filter only matches
// a stored mileage at or below the new one; otherwise the upsert collides on _id and the write is
// reported as ErrStaleMileage.
func (c *MongoVehicleCollection) SaveVehicle(ctx context.Context, vehicle models.Vehicle) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if vehicle.ID == "" {
		return fmt.Errorf("save vehicle: empty id")
	}
	filter := bson.M{"_id": vehicle.ID, "mileage": bson.M{"$lte": vehicle.Mileage}}
	_, err := c.Collection.ReplaceOne(ctx, filter, vehicle, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("save vehicle %s at %d km: %w", vehicle.ID, vehicle.Mileage, ErrStaleMileage)
	}
	if err != nil {
		return fmt.Errorf("save vehicle %s: %w", vehicle.ID, err)
	}
	return nil
}

// MongoTaskCollection implements TaskCollection for MongoDB.
type MongoTaskCollection struct {
	Collection *mongo.Collection
}

// FindTasks returns the catalog sorted by interval then id.
func (c *MongoTaskCollection) FindTasks(ctx context.Context) ([]models.MaintenanceTask, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	opts := options.Find().SetSort(bson.D{{Key: "interval", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := c.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	defer cursor.Close(ctx)

	tasks := []models.MaintenanceTask{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return tasks, nil
}

// FindTask finds a task by its ID.
func (c *MongoTaskCollection) FindTask(ctx context.Context, id string) (*models.MaintenanceTask, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var task models.MaintenanceTask
	if err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find task %s: %w", id, err)
	}
	return &task, nil
}

// UpsertTask creates or replaces a task, preserving its creation time.
func (c *MongoTaskCollection) UpsertTask(ctx context.Context, task models.MaintenanceTask) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"name":              task.Name,
			"interval":          task.Interval,
			"price_independent": task.PriceIndependent,
			"price_dealer":      task.PriceDealer,
			"description":       task.Description,
			"updated_at":        now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err := c.Collection.UpdateOne(ctx, bson.M{"_id": task.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTask deletes a task by its ID.
func (c *MongoTaskCollection) DeleteTask(ctx context.Context, id string) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountTasks returns the catalog size.
func (c *MongoTaskCollection) CountTasks(ctx context.Context) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	return c.Collection.CountDocuments(ctx, bson.M{})
}

// InsertTasks inserts tasks in bulk, used to seed an empty catalog.
func (c *MongoTaskCollection) InsertTasks(ctx context.Context, tasks []models.MaintenanceTask) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if len(tasks) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, 0, len(tasks))
	for _, task := range tasks {
		task.CreatedAt = now
		task.UpdatedAt = now
		docs = append(docs, task)
	}
	if _, err := c.Collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert tasks: %w", err)
	}
	return nil
}

// MongoHistoryCollection implements HistoryCollection for MongoDB.
type MongoHistoryCollection struct {
	Collection *mongo.Collection
}

// FindHistory returns every service record, highest mileage first.
func (c *MongoHistoryCollection) FindHistory(ctx context.Context) ([]models.ServiceRecord, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	opts := options.Find().SetSort(bson.D{{Key: "mileage", Value: -1}})
	cursor, err := c.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find history: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.ServiceRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return records, nil
}

// UpsertRecord inserts the record only if its (task, mileage) id is new.
func (c *MongoHistoryCollection) UpsertRecord(ctx context.Context, record models.ServiceRecord) (bool, error) {
	if c.Collection == nil {
		return false, ErrNilCollection
	}
	if record.ID == "" {
		record.ID = models.ServiceRecordID(record.TaskID, record.Mileage)
	}
	result, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": record.ID},
		bson.M{"$setOnInsert": bson.M{
			"task_id":    record.TaskID,
			"mileage":    record.Mileage,
			"date":       record.Date,
			"created_at": record.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert history %s: %w", record.ID, err)
	}
	return result.UpsertedCount > 0, nil
}

// MongoInvoiceCollection implements InvoiceCollection for MongoDB.
type MongoInvoiceCollection struct {
	Collection *mongo.Collection
}

// InsertInvoice inserts invoice and sets its generated ID.
func (c *MongoInvoiceCollection) InsertInvoice(ctx context.Context, invoice *models.Invoice) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now()
	}
	result, err := c.Collection.InsertOne(ctx, invoice)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		invoice.ID = id
	}
	return nil
}

// FindInvoices returns invoices, newest document date first.
func (c *MongoInvoiceCollection) FindInvoices(ctx context.Context) ([]models.Invoice, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := c.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find invoices: %w", err)
	}
	defer cursor.Close(ctx)

	invoices := []models.Invoice{}
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("decode invoices: %w", err)
	}
	return invoices, nil
}
