package carbon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHolder struct {
	data Data
	ok   bool
	sets int
}

func (f *fakeHolder) Set(data Data) {
	f.data = data
	f.ok = true
	f.sets++
}

func (f *fakeHolder) Get() (Data, bool) {
	return f.data, f.ok
}

type fakeHistory struct {
	saved []Data
}

func (f *fakeHistory) SaveReading(_ string, data Data) {
	f.saved = append(f.saved, data)
}

func (f *fakeHistory) GetLatest(_ string) (Data, error) {
	if len(f.saved) == 0 {
		return Data{}, errors.New("empty")
	}
	return f.saved[len(f.saved)-1], nil
}

func (f *fakeHistory) GetRange(_ string, _, _ time.Time) ([]Data, error) {
	return f.saved, nil
}

func TestServiceRefreshStoresReading(t *testing.T) {
	uk := &stubUKFetcher{data: ukFixture()}
	holder := &fakeHolder{}
	history := &fakeHistory{}
	service := NewService(NewRouter(uk, &stubEUFetcher{}), holder, history, "AL10", "")

	data, errDetails := service.Refresh(context.Background())

	require.Nil(t, errDetails)
	require.NotNil(t, data)
	assert.Equal(t, 1, holder.sets)
	require.Len(t, history.saved, 1)
	assert.Equal(t, SourceNationalGrid, history.saved[0].Source)

	latest, ok := service.Latest()
	require.True(t, ok)
	assert.Equal(t, data.Intensity, latest.Intensity)
}

func TestServiceRefreshKeepsLastGoodOnFailure(t *testing.T) {
	uk := &stubUKFetcher{data: ukFixture()}
	holder := &fakeHolder{}
	history := &fakeHistory{}
	service := NewService(NewRouter(uk, &stubEUFetcher{}), holder, history, "AL10", "")

	_, errDetails := service.Refresh(context.Background())
	require.Nil(t, errDetails)

	// Provider starts failing: the cached reading must survive.
	uk.data = nil
	uk.err = errors.New("connection refused")

	data, errDetails := service.Refresh(context.Background())
	assert.Nil(t, data)
	require.NotNil(t, errDetails)
	assert.Equal(t, ErrInvalidLocation, errDetails.Kind)

	latest, ok := service.Latest()
	require.True(t, ok)
	assert.Equal(t, 112.0, latest.Intensity)
	assert.Equal(t, 1, holder.sets)
	assert.Len(t, history.saved, 1)
}
