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

func initAssembleTest(t *testing.T) {
	initTest(t)
	dbMock.On("InsertExam", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("AddQuestionUsage", mock.Anything, mock.Anything).Return(nil)
	histMock.On("GetAnsweredQuestions", mock.Anything, "u1").Return(map[string]bool{}, nil)
}

func insertedExam(t *testing.T) *persistence.Exam {
	t.Helper()
	for _, c := range dbMock.Calls {
		if c.Method == "InsertExam" {
			return c.Arguments[1].(*persistence.Exam)
		}
	}
	require.Fail(t, "no InsertExam call")
	return nil
}

func usageCalls() []string {
	res := []string{}
	for _, c := range dbMock.Calls {
		if c.Method == "AddQuestionUsage" {
			res = append(res, c.Arguments[1].(string))
		}
	}
	return res
}

func Test_Assemble(t *testing.T) {
	initAssembleTest(t)
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(newTemplate("t1",
		persistence.QuestionReq{Type: 2}, persistence.QuestionReq{Type: 2}), nil)
	dbMock.On("LoadQuestions", mock.Anything, 2, 10000).Return([]*persistence.Question{
		newQuestion("q1", 2, 0), newQuestion("q2", 2, 1), newQuestion("q3", 2, 5)}, nil)

	id, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	require.Nil(t, err)
	assert.NotEmpty(t, id)

	ex := insertedExam(t)
	assert.Equal(t, id, ex.ID)
	assert.Equal(t, "u1", ex.UserID)
	assert.Equal(t, "t1", ex.TemplateID)
	require.Equal(t, 2, len(ex.Slots))
	assert.Equal(t, "q1", ex.Slots[0].QuestionID)
	assert.Equal(t, "q2", ex.Slots[1].QuestionID)
	assert.Equal(t, 1, ex.Slots[0].Num)
	assert.Equal(t, status.Awaiting.String(), ex.Slots[0].Status)
	assert.Equal(t, tNow, ex.Started)
	assert.Equal(t, tNow.Add(600*time.Second), ex.Expires)
	assert.Equal(t, []string{"q1", "q2"}, usageCalls())
}

func Test_Assemble_ConcreteIDs(t *testing.T) {
	initAssembleTest(t)
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(newTemplate("t1",
		persistence.QuestionReq{Type: 1, QuestionID: "q9"}), nil)
	dbMock.On("LoadQuestion", mock.Anything, "q9").Return(newQuestion("q9", 1, 0), nil)

	_, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	require.Nil(t, err)
	ex := insertedExam(t)
	assert.Equal(t, "q9", ex.Slots[0].QuestionID)
	assert.Equal(t, 0, len(histMock.Calls))
}

func Test_Assemble_ConcreteMissing_Fails(t *testing.T) {
	initAssembleTest(t)
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(newTemplate("t1",
		persistence.QuestionReq{Type: 1, QuestionID: "q9"}), nil)
	dbMock.On("LoadQuestion", mock.Anything, "q9").Return(nil, nil)

	_, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	assert.ErrorIs(t, err, ErrInitExamFailed)
}

func Test_Assemble_AvoidsHistory(t *testing.T) {
	initAssembleTest(t)
	histMock.ExpectedCalls = nil
	histMock.On("GetAnsweredQuestions", mock.Anything, "u1").Return(map[string]bool{"q1": true}, nil)
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(newTemplate("t1",
		persistence.QuestionReq{Type: 2}), nil)
	dbMock.On("LoadQuestions", mock.Anything, 2, 10000).Return([]*persistence.Question{
		newQuestion("q1", 2, 0), newQuestion("q2", 2, 1)}, nil)

	_, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	require.Nil(t, err)
	assert.Equal(t, "q2", insertedExam(t).Slots[0].QuestionID)
}

func Test_Assemble_HistoryFetchedOnce(t *testing.T) {
	initAssembleTest(t)
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(newTemplate("t1",
		persistence.QuestionReq{Type: 2}, persistence.QuestionReq{Type: 3},
		persistence.QuestionReq{Type: 2}), nil)
	dbMock.On("LoadQuestions", mock.Anything, 2, 10000).Return([]*persistence.Question{
		newQuestion("q1", 2, 0), newQuestion("q2", 2, 1)}, nil)
	dbMock.On("LoadQuestions", mock.Anything, 3, 10000).Return([]*persistence.Question{
		newQuestion("q3", 3, 0)}, nil)

	_, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	require.Nil(t, err)
	assert.Equal(t, 1, len(histMock.Calls))
}

func Test_Assemble_Tier1_HistoryRepeat(t *testing.T) {
	initAssembleTest(t)
	histMock.ExpectedCalls = nil
	histMock.On("GetAnsweredQuestions", mock.Anything, "u1").Return(
		map[string]bool{"q1": true, "q2": true}, nil)
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(newTemplate("t1",
		persistence.QuestionReq{Type: 2}, persistence.QuestionReq{Type: 2}), nil)
	dbMock.On("LoadQuestions", mock.Anything, 2, 10000).Return([]*persistence.Question{
		newQuestion("q1", 2, 0), newQuestion("q2", 2, 1)}, nil)

	_, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	require.Nil(t, err)
	ex := insertedExam(t)
	assert.Equal(t, "q1", ex.Slots[0].QuestionID)
	assert.Equal(t, "q2", ex.Slots[1].QuestionID)
}

func Test_Assemble_Tier2_InPaperRepeat(t *testing.T) {
	initAssembleTest(t)
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(newTemplate("t1",
		persistence.QuestionReq{Type: 2}, persistence.QuestionReq{Type: 2}), nil)
	dbMock.On("LoadQuestions", mock.Anything, 2, 10000).Return([]*persistence.Question{
		newQuestion("q1", 2, 0)}, nil)

	_, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	require.Nil(t, err)
	ex := insertedExam(t)
	assert.Equal(t, "q1", ex.Slots[0].QuestionID)
	assert.Equal(t, "q1", ex.Slots[1].QuestionID)
	assert.Equal(t, []string{"q1"}, usageCalls())
}

func Test_Assemble_EmptyPool_NoPartialPersist(t *testing.T) {
	initAssembleTest(t)
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(newTemplate("t1",
		persistence.QuestionReq{Type: 2}, persistence.QuestionReq{Type: 3}), nil)
	dbMock.On("LoadQuestions", mock.Anything, 2, 10000).Return([]*persistence.Question{
		newQuestion("q1", 2, 0)}, nil)
	dbMock.On("LoadQuestions", mock.Anything, 3, 10000).Return([]*persistence.Question{}, nil)

	_, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	assert.ErrorIs(t, err, ErrInitExamFailed)
	for _, c := range dbMock.Calls {
		assert.NotEqual(t, "InsertExam", c.Method)
		assert.NotEqual(t, "AddQuestionUsage", c.Method)
	}
}

func Test_Assemble_NoTemplate(t *testing.T) {
	initAssembleTest(t)
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(nil, nil)
	_, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	assert.ErrorIs(t, err, ErrInitExamFailed)
}

func Test_Assemble_DeprecatedTemplate(t *testing.T) {
	initAssembleTest(t)
	tpl := newTemplate("t1", persistence.QuestionReq{Type: 2})
	tpl.Deprecated = true
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(tpl, nil)
	_, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	assert.ErrorIs(t, err, ErrInitExamFailed)
}

func Test_Assemble_BadParams(t *testing.T) {
	initAssembleTest(t)
	_, err := srv.Assemble(test.Ctx(t), "", "t1")
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = srv.Assemble(test.Ctx(t), "u1", "")
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func Test_Assemble_HistoryFails(t *testing.T) {
	initAssembleTest(t)
	histMock.ExpectedCalls = nil
	histMock.On("GetAnsweredQuestions", mock.Anything, "u1").Return(nil, fmt.Errorf("olia"))
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(newTemplate("t1",
		persistence.QuestionReq{Type: 2}), nil)

	_, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	assert.ErrorIs(t, err, ErrInternal)
}

func Test_Assemble_UsageBumpFailure_Ignored(t *testing.T) {
	initAssembleTest(t)
	dbMock.ExpectedCalls = nil
	dbMock.On("InsertExam", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("AddQuestionUsage", mock.Anything, mock.Anything).Return(fmt.Errorf("olia"))
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(newTemplate("t1",
		persistence.QuestionReq{Type: 2}), nil)
	dbMock.On("LoadQuestions", mock.Anything, 2, 10000).Return([]*persistence.Question{
		newQuestion("q1", 2, 0)}, nil)

	id, err := srv.Assemble(test.Ctx(t), "u1", "t1")
	assert.Nil(t, err)
	assert.NotEmpty(t, id)
}

func Test_pickByPolicy_TacticSticks(t *testing.T) {
	pool := []*persistence.Question{newQuestion("q1", 2, 0), newQuestion("q2", 2, 1)}
	chosen := map[string]bool{}
	history := map[string]bool{"q1": true, "q2": true}
	tactic := map[int]int{}

	q := pickByPolicy(pool, chosen, history, tactic, 2)
	require.NotNil(t, q)
	assert.Equal(t, "q1", q.ID)
	assert.Equal(t, 1, tactic[2])

	chosen[q.ID] = true
	q = pickByPolicy(pool, chosen, history, tactic, 2)
	require.NotNil(t, q)
	assert.Equal(t, "q2", q.ID)
}

func Test_pickByPolicy_EmptyPool(t *testing.T) {
	assert.Nil(t, pickByPolicy(nil, map[string]bool{}, map[string]bool{}, map[int]int{}, 2))
}
