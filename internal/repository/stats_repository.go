package repository

import (
	"context"
	"database/sql"
	"time"
)

// StudyStats is a per-member progress snapshot. The int64 counters and the
// timestamp must survive the cache round-trip exactly, which is why the
// cache layer decodes into this concrete type.
type StudyStats struct {
	MemberID      uint64     `json:"memberId"`
	ArticlesRead  int64      `json:"articlesRead"`
	QuizzesTaken  int64      `json:"quizzesTaken"`
	ReviewsSolved int64      `json:"reviewsSolved"`
	LastStudiedAt *time.Time `json:"lastStudiedAt"`
}

// StudyStatsRepo aggregates study_records rows. Queries here are the
// expensive reads the cache-aside layer exists for.
type StudyStatsRepo struct{ DB *sql.DB }

func NewStudyStatsRepo(db *sql.DB) *StudyStatsRepo { return &StudyStatsRepo{DB: db} }

// ForMember computes the stats snapshot for one member.
func (r *StudyStatsRepo) ForMember(ctx context.Context, memberID uint64) (StudyStats, error) {
	s := StudyStats{MemberID: memberID}
	var last sql.NullTime
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN kind='ARTICLE' THEN 1 END),
			COUNT(CASE WHEN kind='QUIZ' THEN 1 END),
			COUNT(CASE WHEN kind='REVIEW' THEN 1 END),
			MAX(studied_at)
		FROM study_records WHERE member_id=?`,
		memberID).Scan(&s.ArticlesRead, &s.QuizzesTaken, &s.ReviewsSolved, &last)
	if err != nil {
		return StudyStats{}, err
	}
	if last.Valid {
		t := last.Time
		s.LastStudiedAt = &t
	}
	return s, nil
}
