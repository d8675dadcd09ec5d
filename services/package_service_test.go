package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/itpetinwtbap/quiz/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPackageService(t *testing.T) (*PackageService, *memStore) {
	t.Helper()
	st := newMemStore()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC))
	return NewPackageService(st, NewMatchTimer(clock)), st
}

func TestPackageService_CreateAndUpdate(t *testing.T) {
	svc, _ := newTestPackageService(t)
	ctx := context.Background()

	pkg, err := svc.CreatePackage(ctx, &CreatePackageRequest{
		Name: "Pub Quiz: Round One",
		Questions: []CreateQuestionRequest{
			{Question: "2+2?", Answer: "4"},
			{Question: "Capital of France?", Answer: "Paris", Type: models.QuestionTypeImage, TimeLimit: 20},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "pub-quiz-round-one", pkg.Slug)
	assert.True(t, pkg.IsActive)

	questions, err := svc.PackageQuestions(ctx, pkg.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, models.QuestionTypeText, questions[0].Type)
	assert.Equal(t, models.DefaultTimeLimit, questions[0].TimeLimit)
	assert.Equal(t, 1, questions[1].OrderIndex)
	assert.Equal(t, 20, questions[1].TimeLimit)

	updated, err := svc.UpdatePackage(ctx, pkg.ID, &UpdatePackageRequest{Name: strPtr("Finals")})
	require.NoError(t, err)
	assert.Equal(t, "finals", updated.Slug)

	toggled, err := svc.TogglePackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	active, err := svc.ListPackages(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, svc.DeletePackage(ctx, pkg.ID))
	assert.ErrorIs(t, svc.DeletePackage(ctx, pkg.ID), ErrNotFound)
	_, err = svc.PackageQuestions(ctx, pkg.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPackageService_ImportSIGame(t *testing.T) {
	svc, _ := newTestPackageService(t)
	ctx := context.Background()

	var src SIGamePackage
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Imported bank",
		"author": "someone",
		"rounds": [
			{"name": "Round 1", "themes": [
				{"name": "Rivers", "questions": [
					{"price": 100, "question": "Longest river?", "answer": "Nile"},
					{"price": 200, "question": "Listen", "answer": "Volga", "type": "audio", "sources": ["a.mp3"]}
				]}
			]},
			{"name": "Round 2", "themes": [
				{"name": "Art", "questions": [
					{"price": 300, "question": "Who painted it?", "answer": "Monet", "type": "IMAGE", "comments": "impressionism"}
				]}
			]}
		]
	}`), &src))

	pkg, err := svc.ImportSIGame(ctx, &src)
	require.NoError(t, err)
	assert.Equal(t, []string{"imported", "sigame"}, pkg.Tags)
	assert.Equal(t, "SIGame", pkg.Metadata["source"])
	assert.Equal(t, "2024-03-01T20:00:00Z", pkg.Metadata["importedAt"])

	got, err := svc.GetPackage(ctx, pkg.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 3)

	q := got.Questions[1]
	assert.Equal(t, models.QuestionTypeAudio, q.Type)
	assert.Equal(t, 1, q.OrderIndex)
	assert.Equal(t, "Rivers", q.Metadata["theme"])
	assert.Equal(t, 200, q.Metadata["price"])
	assert.Equal(t, []string{"a.mp3"}, q.Metadata["sources"])

	last := got.Questions[2]
	assert.Equal(t, models.QuestionTypeImage, last.Type)
	assert.Equal(t, "impressionism", last.Comment)
	assert.Equal(t, "Round 2", last.Metadata["round"])
}

func TestPackageService_Questions(t *testing.T) {
	svc, st := newTestPackageService(t)
	ctx := context.Background()
	_, qs := seedMatch(t, st, 2)

	all, err := svc.ListQuestions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	q, err := svc.GetQuestion(ctx, qs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Answer 2", q.Answer)

	_, err = svc.GetQuestion(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
