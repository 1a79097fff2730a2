package exam

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
	"github.com/voxexam/voxexam/internal/pkg/status"
	"github.com/voxexam/voxexam/internal/pkg/test"
)

func finishedSlot(num, qType int, score map[string]float64) persistence.Slot {
	return persistence.Slot{Num: num, QuestionID: fmt.Sprintf("q%d", num), Type: qType,
		Status: status.Finished.String(), Score: score}
}

func Test_GetResult(t *testing.T) {
	initTest(t)
	ex := newRunningExam(
		finishedSlot(1, 1, map[string]float64{"quality": 80}),
		finishedSlot(2, 2, map[string]float64{"key": 90, "detail": 70}),
		finishedSlot(3, 3, map[string]float64{"structure": 60, "logic": 100}))
	dbMock.On("LoadExam", mock.Anything, "e1").Return(ex, nil)
	dbMock.On("UpdateExam", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("MoveExamToHistory", mock.Anything, "e1").Return(nil)

	res, err := srv.GetResult(test.Ctx(t), "e1")
	require.Nil(t, err)
	assert.Equal(t, "e1", res.ExamID)
	assert.Equal(t, 82.0, res.Score.Total)
	require.NotNil(t, res.Report)
	assert.Equal(t, 3, len(res.Report.Items))
	require.NotNil(t, ex.Score)
	assert.Equal(t, 82.0, ex.Score.Total)
}

func Test_GetResult_CachedScore(t *testing.T) {
	initTest(t)
	ex := newRunningExam(finishedSlot(1, 1, map[string]float64{"quality": 80}))
	ex.Score = &persistence.ScoreInfo{Quality: 80, Total: 24}
	dbMock.On("LoadExam", mock.Anything, "e1").Return(ex, nil)

	res, err := srv.GetResult(test.Ctx(t), "e1")
	require.Nil(t, err)
	assert.Equal(t, 24.0, res.Score.Total)
	for _, c := range dbMock.Calls {
		assert.NotEqual(t, "UpdateExam", c.Method)
		assert.NotEqual(t, "MoveExamToHistory", c.Method)
	}
}

func Test_GetResult_InProcessing(t *testing.T) {
	initTest(t)
	ex := newRunningExam(
		finishedSlot(1, 1, map[string]float64{"quality": 80}),
		awaitingSlot(2, 2))
	dbMock.On("LoadExam", mock.Anything, "e1").Return(ex, nil)

	_, err := srv.GetResult(test.Ctx(t), "e1")
	assert.ErrorIs(t, err, ErrInProcessing)
}

func Test_GetResult_ExpiredHandling_StillInProcessing(t *testing.T) {
	initTest(t)
	s := awaitingSlot(1, 2)
	s.Status = status.Handling.String()
	ex := newRunningExam(s)
	ex.Expires = tNow.Add(-time.Minute)
	dbMock.On("LoadExam", mock.Anything, "e1").Return(ex, nil)

	_, err := srv.GetResult(test.Ctx(t), "e1")
	assert.ErrorIs(t, err, ErrInProcessing)
}

func Test_GetResult_ExpiredNoHandling_Resolves(t *testing.T) {
	initTest(t)
	ex := newRunningExam(
		finishedSlot(1, 2, map[string]float64{"key": 80, "detail": 60}),
		awaitingSlot(2, 2))
	ex.Expires = tNow.Add(-time.Minute)
	dbMock.On("LoadExam", mock.Anything, "e1").Return(ex, nil)
	dbMock.On("UpdateExam", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("MoveExamToHistory", mock.Anything, "e1").Return(nil)

	res, err := srv.GetResult(test.Ctx(t), "e1")
	require.Nil(t, err)
	assert.Equal(t, 40.0, res.Score.Key)
	assert.Equal(t, 30.0, res.Score.Detail)
}

func Test_GetResult_ErroredSlot_ZeroScored(t *testing.T) {
	initTest(t)
	s := awaitingSlot(2, 2)
	s.Status = status.Error.String()
	ex := newRunningExam(
		finishedSlot(1, 2, map[string]float64{"key": 80, "detail": 60}), s)
	dbMock.On("LoadExam", mock.Anything, "e1").Return(ex, nil)
	dbMock.On("UpdateExam", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("MoveExamToHistory", mock.Anything, "e1").Return(nil)

	res, err := srv.GetResult(test.Ctx(t), "e1")
	require.Nil(t, err)
	assert.Equal(t, 40.0, res.Score.Key)
}

func Test_GetResult_NoExam(t *testing.T) {
	initTest(t)
	dbMock.On("LoadExam", mock.Anything, "e1").Return(nil, nil)
	_, err := srv.GetResult(test.Ctx(t), "e1")
	assert.ErrorIs(t, err, ErrExamNotExist)
}

func Test_GetResult_FailMove(t *testing.T) {
	initTest(t)
	ex := newRunningExam(finishedSlot(1, 1, map[string]float64{"quality": 80}))
	dbMock.On("LoadExam", mock.Anything, "e1").Return(ex, nil)
	dbMock.On("UpdateExam", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("MoveExamToHistory", mock.Anything, "e1").Return(fmt.Errorf("olia"))
	_, err := srv.GetResult(test.Ctx(t), "e1")
	assert.ErrorIs(t, err, ErrInternal)
}

func Test_GetRecords(t *testing.T) {
	initTest(t)
	scored := &persistence.Exam{ID: "e1", TemplateID: "t1",
		Started: tNow.Add(-time.Hour), Score: &persistence.ScoreInfo{Total: 82}}
	unscored := &persistence.Exam{ID: "e2", TemplateID: "t1", Started: tNow}
	dbMock.On("LoadUserExams", mock.Anything, "u1").Return([]*persistence.Exam{scored, unscored}, nil)

	recs, err := srv.GetRecords(test.Ctx(t), "u1")
	require.Nil(t, err)
	require.Equal(t, 1, len(recs))
	assert.Equal(t, "e1", recs[0].ExamID)
	assert.Equal(t, 82.0, recs[0].Score.Total)
}

func Test_GetRecords_Empty(t *testing.T) {
	initTest(t)
	dbMock.On("LoadUserExams", mock.Anything, "u1").Return([]*persistence.Exam{}, nil)
	recs, err := srv.GetRecords(test.Ctx(t), "u1")
	require.Nil(t, err)
	assert.Equal(t, 0, len(recs))
}

func Test_GetRecords_BadParams(t *testing.T) {
	initTest(t)
	_, err := srv.GetRecords(test.Ctx(t), "")
	assert.ErrorIs(t, err, ErrInvalidParam)
}
