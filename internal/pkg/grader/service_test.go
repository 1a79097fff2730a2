package grader

import (
	"fmt"
	"testing"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vgarvardt/gue/v5"

	"github.com/voxexam/voxexam/internal/pkg/messages"
	"github.com/voxexam/voxexam/internal/pkg/persistence"
	"github.com/voxexam/voxexam/internal/pkg/status"
	"github.com/voxexam/voxexam/internal/pkg/test"
	"github.com/voxexam/voxexam/internal/pkg/test/mocks"
)

var (
	dbMock     *mocks.DB
	senderMock *mocks.Sender
	srvData    *ServiceData
)

func initTest(t *testing.T) {
	dbMock = &mocks.DB{}
	senderMock = &mocks.Sender{}
	srvData = &ServiceData{DB: dbMock, GueClient: &gue.Client{}, WorkerCount: 5, MsgSender: senderMock}
	senderMock.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func newTestExam(slots int) *persistence.Exam {
	res := &persistence.Exam{ID: "1", UserID: "u1"}
	for i := 1; i <= slots; i++ {
		res.Slots = append(res.Slots, persistence.Slot{Num: i, Type: 2, Status: status.Handling.String()})
	}
	return res
}

func newTestMsg(slot int) *messages.GradeMessage {
	return &messages.GradeMessage{QueueMessage: amessages.QueueMessage{ID: "1"}, Slot: slot,
		Status: status.Finished.String(), Score: map[string]float64{"key": 80, "detail": 70}}
}

func Test_handleGrade(t *testing.T) {
	initTest(t)
	dbMock.On("LoadActiveExam", mock.Anything, "1").Return(newTestExam(3), nil)
	dbMock.On("UpdateExam", mock.Anything, mock.Anything).Return(nil)
	err := handleGrade(test.Ctx(t), newTestMsg(2), srvData)
	assert.Nil(t, err)
	require.Equal(t, 1, len(senderMock.Calls))
	assert.Equal(t, messages.StatusChange, senderMock.Calls[0].Arguments[2])
}

func Test_handleGrade_savesSlot(t *testing.T) {
	initTest(t)
	ex := newTestExam(3)
	dbMock.On("LoadActiveExam", mock.Anything, "1").Return(ex, nil)
	dbMock.On("UpdateExam", mock.Anything, mock.Anything).Return(nil)
	err := handleGrade(test.Ctx(t), newTestMsg(2), srvData)
	assert.Nil(t, err)
	assert.Equal(t, status.Finished.String(), ex.Slots[1].Status)
	assert.Equal(t, map[string]float64{"key": 80, "detail": 70}, ex.Slots[1].Score)
	assert.Equal(t, status.Handling.String(), ex.Slots[0].Status)
}

func Test_handleGrade_lastSlotInforms(t *testing.T) {
	initTest(t)
	ex := newTestExam(2)
	ex.Slots[0].Status = status.Finished.String()
	dbMock.On("LoadActiveExam", mock.Anything, "1").Return(ex, nil)
	dbMock.On("UpdateExam", mock.Anything, mock.Anything).Return(nil)
	err := handleGrade(test.Ctx(t), newTestMsg(2), srvData)
	assert.Nil(t, err)
	require.Equal(t, 2, len(senderMock.Calls))
	assert.Equal(t, messages.StatusChange, senderMock.Calls[0].Arguments[2])
	assert.Equal(t, messages.Inform, senderMock.Calls[1].Arguments[2])
	var im amessages.Message = senderMock.Calls[1].Arguments[1].(*amessages.InformMessage)
	assert.Equal(t, "1", im.GetID())
	assert.Equal(t, amessages.InformTypeFinished, im.(*amessages.InformMessage).Type)
}

func Test_handleGrade_noExam_drops(t *testing.T) {
	initTest(t)
	dbMock.On("LoadActiveExam", mock.Anything, "1").Return(nil, nil)
	err := handleGrade(test.Ctx(t), newTestMsg(2), srvData)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(senderMock.Calls))
}

func Test_handleGrade_badSlot_drops(t *testing.T) {
	initTest(t)
	dbMock.On("LoadActiveExam", mock.Anything, "1").Return(newTestExam(3), nil)
	err := handleGrade(test.Ctx(t), newTestMsg(10), srvData)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(senderMock.Calls))
}

func Test_handleGrade_terminalSlot_drops(t *testing.T) {
	initTest(t)
	ex := newTestExam(3)
	ex.Slots[1].Status = status.Error.String()
	dbMock.On("LoadActiveExam", mock.Anything, "1").Return(ex, nil)
	err := handleGrade(test.Ctx(t), newTestMsg(2), srvData)
	assert.Nil(t, err)
	assert.Equal(t, status.Error.String(), ex.Slots[1].Status)
}

func Test_handleGrade_unknownStatus_drops(t *testing.T) {
	initTest(t)
	m := newTestMsg(2)
	m.Status = "olia"
	err := handleGrade(test.Ctx(t), m, srvData)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(dbMock.Calls))
}

func Test_handleGrade_failDB(t *testing.T) {
	initTest(t)
	dbMock.On("LoadActiveExam", mock.Anything, "1").Return(nil, fmt.Errorf("olia err"))
	err := handleGrade(test.Ctx(t), newTestMsg(2), srvData)
	assert.NotNil(t, err)
}

func Test_handleGrade_failUpdate(t *testing.T) {
	initTest(t)
	dbMock.On("LoadActiveExam", mock.Anything, "1").Return(newTestExam(3), nil)
	dbMock.On("UpdateExam", mock.Anything, mock.Anything).Return(fmt.Errorf("olia err"))
	err := handleGrade(test.Ctx(t), newTestMsg(2), srvData)
	assert.NotNil(t, err)
}

func Test_handleGrade_pretest(t *testing.T) {
	initTest(t)
	p := &persistence.Pretest{ID: "1", Status: status.Handling.String()}
	dbMock.On("LoadPretest", mock.Anything, "1").Return(p, nil)
	dbMock.On("UpdatePretest", mock.Anything, mock.Anything).Return(nil)
	m := newTestMsg(0)
	m.Pretest = true
	m.RecognizedText = "hello there"
	err := handleGrade(test.Ctx(t), m, srvData)
	assert.Nil(t, err)
	assert.Equal(t, status.Finished.String(), p.Status)
	assert.Equal(t, "hello there", p.RecognizedText)
	require.Equal(t, 1, len(senderMock.Calls))
}

func Test_handleGrade_pretestMissing_drops(t *testing.T) {
	initTest(t)
	dbMock.On("LoadPretest", mock.Anything, "1").Return(nil, nil)
	m := newTestMsg(0)
	m.Pretest = true
	err := handleGrade(test.Ctx(t), m, srvData)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(senderMock.Calls))
}

func Test_validate(t *testing.T) {
	initTest(t)
	assert.Nil(t, validate(srvData))
	srvData.DB = nil
	assert.NotNil(t, validate(srvData))
	initTest(t)
	srvData.MsgSender = nil
	assert.NotNil(t, validate(srvData))
	initTest(t)
	srvData.WorkerCount = 0
	assert.NotNil(t, validate(srvData))
	initTest(t)
	srvData.GueClient = nil
	assert.NotNil(t, validate(srvData))
}
