package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"simcha-api/domain"
)

// Storage provides access to the underlying persistence mechanisms: one table
// per collection plus the reminder queue.
type Storage struct {
	usersTable        *aztables.Client
	eventsTable       *aztables.Client
	eventTasksTable   *aztables.Client
	defaultTasksTable *aztables.Client
	reminderQueue     *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, usersTable, eventsTable, eventTasksTable, defaultTasksTable, reminderQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	rq, err := azqueue.NewQueueClientFromConnectionString(connStr, reminderQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		usersTable:        svc.NewClient(usersTable),
		eventsTable:       svc.NewClient(eventsTable),
		eventTasksTable:   svc.NewClient(eventTasksTable),
		defaultTasksTable: svc.NewClient(defaultTasksTable),
		reminderQueue:     rq,
	}, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

type userEntity struct {
	aztables.Entity
	Email      string `json:"Email"`
	EmailLower string `json:"EmailLower"`
	FirstName  string `json:"FirstName"`
	LastName   string `json:"LastName"`
	Phone      string `json:"Phone"`
	Nickname   string `json:"Nickname"`
}

func decodeUserEntity(data []byte) (domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		Identity:  ent.RowKey,
		Email:     ent.Email,
		FirstName: ent.FirstName,
		LastName:  ent.LastName,
		Phone:     ent.Phone,
		Nickname:  ent.Nickname,
	}, nil
}

// GetUser retrieves the user record for the given identity, or nil when the
// record is absent.
func (s *Storage) GetUser(ctx context.Context, identity string) (*domain.User, error) {
	ent, err := s.usersTable.GetEntity(ctx, identity, identity, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	user, err := decodeUserEntity(ent.Value)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertUser creates or replaces the user record.
func (s *Storage) UpsertUser(ctx context.Context, u domain.User) error {
	ent := userEntity{
		Entity:     aztables.Entity{PartitionKey: u.Identity, RowKey: u.Identity},
		Email:      u.Email,
		EmailLower: strings.ToLower(u.Email),
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		Nickname:   u.Nickname,
	}
	payload, err := json.Marshal(ent)
	if err == nil {
		_, err = s.usersTable.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// FindUserByEmail looks a user up by case-insensitive exact email match.
// With duplicate emails the first match wins; uniqueness is the
// authentication provider's registration-time concern.
func (s *Storage) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	filter := "EmailLower eq '" + escapeFilterValue(strings.ToLower(strings.TrimSpace(email))) + "'"
	pager := s.usersTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			user, err := decodeUserEntity(e)
			if err != nil {
				return nil, err
			}
			return &user, nil
		}
	}
	return nil, nil
}

type eventEntity struct {
	aztables.Entity
	Name        string `json:"Name"`
	Type        string `json:"Type"`
	Date        string `json:"Date"`
	Description string `json:"Description"`
	OwnerID     string `json:"OwnerId"`
	Members     string `json:"Members"`
	TaskCount   int    `json:"TasksCount"`
	CreatedAt   string `json:"CreatedAt"`
	LastUpdated string `json:"LastUpdated"`
}

func decodeEventEntity(data []byte) (domain.Event, error) {
	var ent eventEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Event{}, err
	}
	ev := domain.Event{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Type:        ent.Type,
		Date:        ent.Date,
		Description: ent.Description,
		OwnerID:     ent.OwnerID,
		TaskCount:   ent.TaskCount,
	}
	if ent.Members != "" {
		if err := json.Unmarshal([]byte(ent.Members), &ev.Members); err != nil {
			return domain.Event{}, err
		}
	}
	if ent.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, ent.CreatedAt); err == nil {
			ev.CreatedAt = t
		}
	}
	if ent.LastUpdated != "" {
		if t, err := time.Parse(time.RFC3339Nano, ent.LastUpdated); err == nil {
			ev.LastUpdated = t
		}
	}
	return ev, nil
}

func encodeEventEntity(ev domain.Event) ([]byte, error) {
	members, err := json.Marshal(ev.Members)
	if err != nil {
		return nil, err
	}
	ent := eventEntity{
		Entity:      aztables.Entity{PartitionKey: ev.ID, RowKey: ev.ID},
		Name:        ev.Name,
		Type:        ev.Type,
		Date:        ev.Date,
		Description: ev.Description,
		OwnerID:     ev.OwnerID,
		Members:     string(members),
		TaskCount:   ev.TaskCount,
		CreatedAt:   ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !ev.LastUpdated.IsZero() {
		ent.LastUpdated = ev.LastUpdated.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(ent)
}

// GetEvent retrieves one event, or nil when absent.
func (s *Storage) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ent, err := s.eventsTable.GetEntity(ctx, eventID, eventID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	ev, err := decodeEventEntity(ent.Value)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// InsertEvent stores a newly created event.
func (s *Storage) InsertEvent(ctx context.Context, ev domain.Event) error {
	payload, err := encodeEventEntity(ev)
	if err == nil {
		_, err = s.eventsTable.AddEntity(ctx, payload, nil)
	}
	return err
}

// UpdateEvent replaces the stored event record and stamps LastUpdated.
func (s *Storage) UpdateEvent(ctx context.Context, ev domain.Event) error {
	ev.LastUpdated = time.Now().UTC()
	payload, err := encodeEventEntity(ev)
	if err == nil {
		_, err = s.eventsTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	}
	return err
}

// SetEventTaskCount merges only the advisory task counter into the event
// record. The counter is a cache of the list length, never authoritative.
func (s *Storage) SetEventTaskCount(ctx context.Context, eventID string, count int) error {
	ent := struct {
		aztables.Entity
		TaskCount   int    `json:"TasksCount"`
		LastUpdated string `json:"LastUpdated"`
	}{
		Entity:      aztables.Entity{PartitionKey: eventID, RowKey: eventID},
		TaskCount:   count,
		LastUpdated: time.Now().UTC().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(ent)
	if err == nil {
		et := azcore.ETagAny
		_, err = s.eventsTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	}
	return err
}

// ListEventsFor returns all events whose member set contains the identity,
// newest-created-first.
func (s *Storage) ListEventsFor(ctx context.Context, identity string) ([]domain.Event, error) {
	pager := s.eventsTable.NewListEntitiesPager(nil)
	events := []domain.Event{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			ev, err := decodeEventEntity(e)
			if err != nil {
				return nil, err
			}
			if ev.IsMember(identity) {
				events = append(events, ev)
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

type eventTasksEntity struct {
	aztables.Entity
	List        string `json:"List"`
	LastUpdated string `json:"LastUpdated"`
}

func decodeEventTasksEntity(data []byte) (domain.TaskList, error) {
	var ent eventTasksEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	if ent.List == "" {
		return domain.TaskList{}, nil
	}
	var list domain.TaskList
	if err := json.Unmarshal([]byte(ent.List), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetEventTasks retrieves the task-list record for the event. An absent
// record reads as an empty list; reading never writes.
func (s *Storage) GetEventTasks(ctx context.Context, eventID string) (domain.TaskList, error) {
	ent, err := s.eventTasksTable.GetEntity(ctx, eventID, eventID, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.TaskList{}, nil
		}
		return nil, err
	}
	return decodeEventTasksEntity(ent.Value)
}

// SaveEventTasks replaces the whole task-list record and refreshes the
// event's advisory task counter. The write is a destructive full replacement;
// concurrent writers race last-write-wins.
func (s *Storage) SaveEventTasks(ctx context.Context, eventID string, tasks domain.TaskList) error {
	list, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	ent := eventTasksEntity{
		Entity:      aztables.Entity{PartitionKey: eventID, RowKey: eventID},
		List:        string(list),
		LastUpdated: time.Now().UTC().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := s.eventTasksTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return err
	}
	refreshTaskCount(ctx, s, eventID, len(tasks))
	return nil
}

type taskCountSetter interface {
	SetEventTaskCount(ctx context.Context, eventID string, count int) error
}

// refreshTaskCount updates the advisory task counter after a list write. The
// counter is a cache of the list length; a failure here leaves it stale, not
// the list, so it is logged and never surfaced to the caller.
func refreshTaskCount(ctx context.Context, setter taskCountSetter, eventID string, count int) {
	if err := setter.SetEventTaskCount(ctx, eventID, count); err != nil {
		log.WithField("event_id", eventID).Warnf("refresh task counter: %v", err)
	}
}

type defaultTaskEntity struct {
	aztables.Entity
	Text     string `json:"Text"`
	Category string `json:"Category"`
	Priority string `json:"Priority"`
}

// ListDefaultTasks returns the catalog entries for one event type.
func (s *Storage) ListDefaultTasks(ctx context.Context, eventType string) ([]domain.DefaultTaskTemplate, error) {
	filter := "PartitionKey eq '" + escapeFilterValue(eventType) + "'"
	pager := s.defaultTasksTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	templates := []domain.DefaultTaskTemplate{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent defaultTaskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			templates = append(templates, domain.DefaultTaskTemplate{
				EventType: ent.PartitionKey,
				Text:      ent.Text,
				Category:  ent.Category,
				Priority:  ent.Priority,
			})
		}
	}
	return templates, nil
}

// ListEventTypes returns the distinct event types present in the catalog.
func (s *Storage) ListEventTypes(ctx context.Context) ([]string, error) {
	pager := s.defaultTasksTable.NewListEntitiesPager(nil)
	seen := map[string]struct{}{}
	types := []string{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent defaultTaskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			if _, ok := seen[ent.PartitionKey]; ok || ent.PartitionKey == "" {
				continue
			}
			seen[ent.PartitionKey] = struct{}{}
			types = append(types, ent.PartitionKey)
		}
	}
	sort.Strings(types)
	return types, nil
}

// ReminderMessage is the payload enqueued for the downstream notifier when a
// task reminder is set.
type ReminderMessage struct {
	EventID  string `json:"eventId"`
	TaskID   string `json:"taskId"`
	Reminder string `json:"reminder"`
}

// EnqueueReminder hands a reminder off to the notification queue.
func (s *Storage) EnqueueReminder(ctx context.Context, msg ReminderMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = s.reminderQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// escapeFilterValue doubles single quotes per the OData filter grammar.
func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
