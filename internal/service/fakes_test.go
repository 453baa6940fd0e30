package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"classmate/internal/apperror"
	"classmate/internal/model"
	"classmate/internal/repository"
	"classmate/internal/schedule"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errInjected = errors.New("injected store failure")

// memStore is an in-memory stand-in for the postgres store. WithinTransaction
// snapshots state and restores it when fn fails.
type memStore struct {
	mu sync.Mutex

	users         map[string]*model.User
	profiles      map[string]*model.Profile
	courses       map[string]*model.Course
	edges         map[[2]string]*model.Friendship
	requests      map[string]*model.FriendRequest
	notifications map[string]*model.Notification
	seq           int
	failOn        map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]*model.User{},
		profiles:      map[string]*model.Profile{},
		courses:       map[string]*model.Course{},
		edges:         map[[2]string]*model.Friendship{},
		requests:      map[string]*model.FriendRequest{},
		notifications: map[string]*model.Notification{},
		failOn:        map[string]error{},
	}
}

func (m *memStore) fail(op string) {
	m.failOn[op] = errInjected
}

func (m *memStore) check(op string) error {
	return m.failOn[op]
}

func (m *memStore) next() time.Time {
	m.seq++
	return time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
}

func (m *memStore) addProfile(id, username, code string) *model.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := username + "@school.edu"
	studentID := "S-" + id
	p := &model.Profile{ID: id, Username: &username, Email: &email, StudentID: &studentID, FriendCode: code}
	m.profiles[id] = p
	m.users[id] = &model.User{ID: id, Email: email}
	return p
}

func (m *memStore) befriend(a, b string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[[2]string{a, b}] = &model.Friendship{ID: uuid.NewString(), UserID: a, FriendID: b, CreatedAt: m.next()}
	m.edges[[2]string{b, a}] = &model.Friendship{ID: uuid.NewString(), UserID: b, FriendID: a, CreatedAt: m.next()}
}

func (m *memStore) addCourse(owner, name string, day schedule.Weekday, start, end int) *model.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &model.Course{ID: uuid.NewString(), UserID: owner, Name: name, DayOfWeek: day, StartPeriod: start, EndPeriod: end, Color: model.CourseColorBlue}
	m.courses[c.ID] = c
	return c
}

type snapshot struct {
	users    map[string]model.User
	profiles map[string]model.Profile
	edges    map[[2]string]model.Friendship
	requests map[string]model.FriendRequest
}

func (m *memStore) snapshot() snapshot {
	s := snapshot{
		users:    map[string]model.User{},
		profiles: map[string]model.Profile{},
		edges:    map[[2]string]model.Friendship{},
		requests: map[string]model.FriendRequest{},
	}
	for k, v := range m.users {
		s.users[k] = *v
	}
	for k, v := range m.profiles {
		s.profiles[k] = *v
	}
	for k, v := range m.edges {
		s.edges[k] = *v
	}
	for k, v := range m.requests {
		s.requests[k] = *v
	}
	return s
}

func (m *memStore) restore(s snapshot) {
	m.users = map[string]*model.User{}
	for k, v := range s.users {
		v := v
		m.users[k] = &v
	}
	m.profiles = map[string]*model.Profile{}
	for k, v := range s.profiles {
		v := v
		m.profiles[k] = &v
	}
	m.edges = map[[2]string]*model.Friendship{}
	for k, v := range s.edges {
		v := v
		m.edges[k] = &v
	}
	m.requests = map[string]*model.FriendRequest{}
	for k, v := range s.requests {
		v := v
		m.requests[k] = &v
	}
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(repos repository.TxRepositories) error) error {
	m.mu.Lock()
	snap := m.snapshot()
	m.mu.Unlock()

	err := fn(repository.TxRepositories{
		Users:          memUsers{m},
		Profiles:       memProfiles{m},
		Friendships:    memFriendships{m},
		FriendRequests: memRequests{m},
	})
	if err != nil {
		m.mu.Lock()
		m.restore(snap)
		m.mu.Unlock()
	}
	return err
}

func (m *memStore) pendingCount(from, to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.FromUserID == from && r.ToUserID == to && r.Status == model.FriendRequestPending {
			n++
		}
	}
	return n
}

func (m *memStore) hasEdge(a, b string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.edges[[2]string{a, b}]
	return ok
}

// users

type memUsers struct{ m *memStore }

func (r memUsers) Create(ctx context.Context, user *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("users.create"); err != nil {
		return err
	}
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	r.m.users[user.ID] = &cp
	return nil
}

func (r memUsers) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) UpdateLastLogin(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u, ok := r.m.users[userID]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

// profiles

type memProfiles struct{ m *memStore }

func (r memProfiles) Create(ctx context.Context, profile *model.Profile) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("profiles.create"); err != nil {
		return err
	}
	cp := *profile
	r.m.profiles[profile.ID] = &cp
	return nil
}

func (r memProfiles) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func publicOf(p *model.Profile) *model.PublicProfile {
	return &model.PublicProfile{ID: p.ID, Username: p.Username, FriendCode: p.FriendCode, School: p.School}
}

func (r memProfiles) FindPublicByID(ctx context.Context, id string) (*model.PublicProfile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return publicOf(p), nil
}

func (r memProfiles) FindPublicByFriendCode(ctx context.Context, code string) (*model.PublicProfile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.profiles {
		if strings.EqualFold(p.FriendCode, code) {
			return publicOf(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memProfiles) FindPublicByIDs(ctx context.Context, ids []string) ([]*model.PublicProfile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("profiles.find_by_ids"); err != nil {
		return nil, err
	}
	out := []*model.PublicProfile{}
	for _, id := range ids {
		if p, ok := r.m.profiles[id]; ok {
			out = append(out, publicOf(p))
		}
	}
	return out, nil
}

func (r memProfiles) FriendCodeExists(ctx context.Context, code string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.profiles {
		if strings.EqualFold(p.FriendCode, code) {
			return true, nil
		}
	}
	return false, nil
}

func (r memProfiles) Update(ctx context.Context, profile *model.Profile) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.profiles[profile.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Username = profile.Username
	p.School = profile.School
	p.StudentID = profile.StudentID
	return nil
}

// courses

type memCourses struct{ m *memStore }

func (r memCourses) Create(ctx context.Context, course *model.Course) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("courses.create"); err != nil {
		return err
	}
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	cp := *course
	r.m.courses[course.ID] = &cp
	return nil
}

func (r memCourses) FindByID(ctx context.Context, id string) (*model.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memCourses) ListByOwner(ctx context.Context, ownerID string) ([]*model.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("courses.list"); err != nil {
		return nil, err
	}
	out := []*model.Course{}
	for _, c := range r.m.courses {
		if c.UserID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartPeriod < out[j].StartPeriod
	})
	return out, nil
}

func (r memCourses) Update(ctx context.Context, course *model.Course) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.courses[course.ID]
	if !ok || c.UserID != course.UserID {
		return repository.ErrNotFound
	}
	cp := *course
	r.m.courses[course.ID] = &cp
	return nil
}

func (r memCourses) Delete(ctx context.Context, id, ownerID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.courses[id]
	if !ok || c.UserID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.m.courses, id)
	return nil
}

func (r memCourses) FindBusyOwners(ctx context.Context, ownerIDs []string, slot schedule.TimeSlot) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("courses.busy"); err != nil {
		return nil, err
	}
	wanted := map[string]bool{}
	for _, id := range ownerIDs {
		wanted[id] = true
	}
	seen := map[string]bool{}
	out := []string{}
	for _, c := range r.m.courses {
		if wanted[c.UserID] && !seen[c.UserID] && schedule.Overlaps(slot, c.Slot()) {
			seen[c.UserID] = true
			out = append(out, c.UserID)
		}
	}
	return out, nil
}

// friendships

type memFriendships struct{ m *memStore }

func (r memFriendships) CreatePair(ctx context.Context, userID, friendID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("friendships.create_pair"); err != nil {
		return err
	}
	for _, k := range [][2]string{{userID, friendID}, {friendID, userID}} {
		if _, ok := r.m.edges[k]; !ok {
			r.m.edges[k] = &model.Friendship{ID: uuid.NewString(), UserID: k[0], FriendID: k[1], CreatedAt: r.m.next()}
		}
	}
	return nil
}

func (r memFriendships) Exists(ctx context.Context, userID, friendID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	_, ok := r.m.edges[[2]string{userID, friendID}]
	return ok, nil
}

func (r memFriendships) ListByUser(ctx context.Context, userID string) ([]*model.Friendship, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*model.Friendship{}
	for k, e := range r.m.edges {
		if k[0] == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memFriendships) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	edges, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.FriendID)
	}
	return ids, nil
}

func (r memFriendships) DeletePair(ctx context.Context, userID, friendID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("friendships.delete_pair"); err != nil {
		return err
	}
	delete(r.m.edges, [2]string{userID, friendID})
	delete(r.m.edges, [2]string{friendID, userID})
	return nil
}

// friend requests

type memRequests struct{ m *memStore }

func (r memRequests) Create(ctx context.Context, req *model.FriendRequest) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("requests.create"); err != nil {
		return err
	}
	for _, existing := range r.m.requests {
		if existing.FromUserID == req.FromUserID && existing.ToUserID == req.ToUserID && existing.Status == model.FriendRequestPending {
			return gorm.ErrDuplicatedKey
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.CreatedAt = r.m.next()
	cp := *req
	r.m.requests[req.ID] = &cp
	return nil
}

func (r memRequests) FindByID(ctx context.Context, id string) (*model.FriendRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	req, ok := r.m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r memRequests) FindByPair(ctx context.Context, fromUserID, toUserID string) ([]*model.FriendRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*model.FriendRequest{}
	for _, req := range r.m.requests {
		if req.FromUserID == fromUserID && req.ToUserID == toUserID {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memRequests) ListPendingIncoming(ctx context.Context, toUserID string) ([]*model.FriendRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*model.FriendRequest{}
	for _, req := range r.m.requests {
		if req.ToUserID == toUserID && req.Status == model.FriendRequestPending {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memRequests) UpdateStatus(ctx context.Context, id string, status model.FriendRequestStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("requests.update_status"); err != nil {
		return err
	}
	req, ok := r.m.requests[id]
	if !ok || req.Status != model.FriendRequestPending {
		return apperror.New(apperror.KindInvalidState, "friend request has already been resolved")
	}
	req.Status = status
	return nil
}

// notifications

type memNotifications struct{ m *memStore }

func (r memNotifications) Create(ctx context.Context, n *model.Notification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("notifications.create"); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = r.m.next()
	cp := *n
	r.m.notifications[n.ID] = &cp
	return nil
}

func (r memNotifications) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n, ok := r.m.notifications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r memNotifications) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*model.Notification{}
	for _, n := range r.m.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []*model.Notification{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memNotifications) CountUnreadByUserID(ctx context.Context, userID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, x := range r.m.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (r memNotifications) MarkAsRead(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if n, ok := r.m.notifications[id]; ok {
		n.IsRead = true
	}
	return nil
}

func (r memNotifications) MarkAllAsRead(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, n := range r.m.notifications {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (r memNotifications) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, x := range r.m.notifications {
		if x.IsRead && x.CreatedAt.Before(cutoff) {
			delete(r.m.notifications, id)
			n++
		}
	}
	return n, nil
}

// recordingNotifier captures notifier calls.
type recordingNotifier struct {
	mu       sync.Mutex
	received []string
	accepted []string
	err      error
}

func (n *recordingNotifier) FriendRequestReceived(ctx context.Context, req *model.FriendRequest, sender *model.PublicProfile) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.received = append(n.received, req.ToUserID)
	return n.err
}

func (n *recordingNotifier) FriendRequestAccepted(ctx context.Context, req *model.FriendRequest, accepter *model.PublicProfile) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accepted = append(n.accepted, req.FromUserID)
	return n.err
}
