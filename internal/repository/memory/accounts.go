package memory

import (
	"context"
	"sort"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"
)

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	defer s.guard()()
	if _, ok := s.st.referral[user.ReferralCode]; ok {
		return repository.ErrDuplicateKey
	}
	now := time.Now()
	user.ID = s.st.nextID()
	user.CreatedAt, user.UpdatedAt = now, now
	s.st.users[user.ID] = *user
	s.st.referral[user.ReferralCode] = user.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*model.User, error) {
	defer s.guard()()
	user, ok := s.st.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByReferralCode(_ context.Context, code string) (*model.User, error) {
	defer s.guard()()
	id, ok := s.st.referral[code]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	user := s.st.users[id]
	return &user, nil
}

func (s *Store) CountReferees(_ context.Context, userID int64) (int64, error) {
	defer s.guard()()
	var n int64
	for _, u := range s.st.users {
		if u.ReferredByID != nil && *u.ReferredByID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetStatistics(_ context.Context, userID int64) (*model.Statistics, error) {
	defer s.guard()()
	stats, ok := s.st.stats[userID]
	if !ok {
		return nil, repository.ErrStatisticsNotFound
	}
	return &stats, nil
}

// LockStatistics 所有事务串行执行，不需要真正加锁，只负责补齐统计行
func (s *Store) LockStatistics(_ context.Context, userID int64) (*model.Statistics, error) {
	defer s.guard()()
	stats, ok := s.st.stats[userID]
	if !ok {
		stats = model.Statistics{ID: s.st.nextID(), UserID: userID, UpdatedAt: time.Now()}
		s.st.stats[userID] = stats
	}
	return &stats, nil
}

func (s *Store) SaveStatistics(_ context.Context, stats *model.Statistics) error {
	defer s.guard()()
	existing, ok := s.st.stats[stats.UserID]
	if stats.ID == 0 {
		if ok {
			return repository.ErrDuplicateKey
		}
		stats.ID = s.st.nextID()
	} else if ok && existing.ID != stats.ID {
		return repository.ErrDuplicateKey
	}
	stats.UpdatedAt = time.Now()
	s.st.stats[stats.UserID] = *stats
	return nil
}

// ---------------------------------------------------------------------------
// 任务
// ---------------------------------------------------------------------------

func (s *Store) CreateMission(_ context.Context, mission *model.Mission) error {
	defer s.guard()()
	for _, m := range s.st.missions {
		if m.Code == mission.Code {
			return repository.ErrDuplicateKey
		}
	}
	mission.ID = s.st.nextID()
	mission.CreatedAt = time.Now()
	s.st.missions[mission.ID] = *mission
	return nil
}

func (s *Store) ListActiveMissions(_ context.Context) ([]*model.Mission, error) {
	defer s.guard()()
	var list []*model.Mission
	for _, m := range s.st.missions {
		if m.Active {
			m := m
			list = append(list, &m)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *Store) GetUserMission(_ context.Context, userID, missionID int64) (*model.UserMission, error) {
	defer s.guard()()
	um, ok := s.st.userMissions[userMissionKey{userID, missionID}]
	if !ok {
		return nil, repository.ErrUserMissionNotFound
	}
	return &um, nil
}

func (s *Store) LockUserMission(_ context.Context, userID, missionID int64) (*model.UserMission, error) {
	defer s.guard()()
	key := userMissionKey{userID, missionID}
	um, ok := s.st.userMissions[key]
	if !ok {
		um = model.UserMission{ID: s.st.nextID(), UserID: userID, MissionID: missionID, UpdatedAt: time.Now()}
		s.st.userMissions[key] = um
	}
	return &um, nil
}

func (s *Store) SaveUserMission(_ context.Context, um *model.UserMission) error {
	defer s.guard()()
	key := userMissionKey{um.UserID, um.MissionID}
	existing, ok := s.st.userMissions[key]
	if um.ID == 0 {
		if ok {
			return repository.ErrDuplicateKey
		}
		um.ID = s.st.nextID()
	} else if ok && existing.ID != um.ID {
		return repository.ErrDuplicateKey
	}
	um.UpdatedAt = time.Now()
	stored := *um
	stored.Mission = nil
	s.st.userMissions[key] = stored
	return nil
}

func (s *Store) ListUserMissions(_ context.Context, userID int64) ([]*model.UserMission, error) {
	defer s.guard()()
	var list []*model.UserMission
	for key, um := range s.st.userMissions {
		if key.userID != userID {
			continue
		}
		um := um
		if m, ok := s.st.missions[key.missionID]; ok {
			um.Mission = &m
		}
		list = append(list, &um)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].MissionID < list[j].MissionID })
	return list, nil
}

// ---------------------------------------------------------------------------
// 人工复核
// ---------------------------------------------------------------------------

func (s *Store) CreateReview(_ context.Context, review *model.PaymentReview) error {
	defer s.guard()()
	if _, ok := s.st.reviewKeys[review.EventKey]; ok {
		return repository.ErrDuplicateEvent
	}
	now := time.Now()
	review.ID = s.st.nextID()
	review.CreatedAt, review.UpdatedAt = now, now
	s.st.reviews[review.ID] = *review
	s.st.reviewKeys[review.EventKey] = struct{}{}
	return nil
}

func (s *Store) GetReview(_ context.Context, id int64) (*model.PaymentReview, error) {
	defer s.guard()()
	review, ok := s.st.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	return &review, nil
}

func (s *Store) ListReviews(_ context.Context, resolved bool, page, pageSize int) ([]*model.PaymentReview, int64, error) {
	defer s.guard()()
	var all []*model.PaymentReview
	for _, r := range s.st.reviews {
		if r.Resolved == resolved {
			r := r
			all = append(all, &r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page, pageSize), int64(len(all)), nil
}

func (s *Store) SaveReview(_ context.Context, review *model.PaymentReview) error {
	defer s.guard()()
	if _, ok := s.st.reviews[review.ID]; !ok {
		return repository.ErrReviewNotFound
	}
	review.UpdatedAt = time.Now()
	s.st.reviews[review.ID] = *review
	return nil
}

// ---------------------------------------------------------------------------
// Outbox
// ---------------------------------------------------------------------------

func (s *Store) CreateOutboxMessage(_ context.Context, msg *model.OutboxMessage) error {
	defer s.guard()()
	now := time.Now()
	msg.ID = s.st.nextID()
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	msg.CreatedAt, msg.UpdatedAt = now, now
	s.st.outbox[msg.ID] = *msg
	return nil
}

func (s *Store) GetPendingMessages(_ context.Context, limit int) ([]*model.OutboxMessage, error) {
	defer s.guard()()
	var list []*model.OutboxMessage
	for _, m := range s.st.outbox {
		if m.Status == model.OutboxStatusPending {
			m := m
			list = append(list, &m)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, id int64) error {
	defer s.guard()()
	m, ok := s.st.outbox[id]
	if !ok {
		return nil
	}
	m.Status = model.OutboxStatusSent
	m.UpdatedAt = time.Now()
	s.st.outbox[id] = m
	return nil
}

func (s *Store) IncrementRetryCount(_ context.Context, id int64, failed bool) error {
	defer s.guard()()
	m, ok := s.st.outbox[id]
	if !ok {
		return nil
	}
	m.RetryCount++
	if failed {
		m.Status = model.OutboxStatusFailed
	}
	m.UpdatedAt = time.Now()
	s.st.outbox[id] = m
	return nil
}
