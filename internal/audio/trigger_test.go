package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		in   TriggerInput
		want Decision
	}{
		{
			name: "independent both exceed",
			in:   TriggerInput{Left: 0.2, Right: 0.2, Threshold: 0.1, LeftEnabled: true, RightEnabled: true},
			want: Decision{Left: true, Right: true},
		},
		{
			name: "independent only right exceeds",
			in:   TriggerInput{Left: 0.05, Right: 0.3, Threshold: 0.1, LeftEnabled: true, RightEnabled: true},
			want: Decision{Right: true},
		},
		{
			name: "equal to threshold does not fire",
			in:   TriggerInput{Left: 0.1, Right: 0.1, Threshold: 0.1, LeftEnabled: true, RightEnabled: true},
			want: Decision{},
		},
		{
			name: "disabled channel never fires",
			in:   TriggerInput{Left: 0.5, Right: 0.5, Threshold: 0.1, LeftEnabled: false, RightEnabled: true},
			want: Decision{Right: true},
		},
		{
			name: "exclusive single exceeding channel",
			in:   TriggerInput{Left: 0.05, Right: 0.3, Threshold: 0.1, LeftEnabled: true, RightEnabled: true, Mode: TriggerExclusive},
			want: Decision{Right: true},
		},
		{
			name: "exclusive louder wins",
			in:   TriggerInput{Left: 0.2, Right: 0.4, Threshold: 0.1, LeftEnabled: true, RightEnabled: true, Mode: TriggerExclusive},
			want: Decision{Right: true},
		},
		{
			name: "exclusive tie goes left",
			in:   TriggerInput{Left: 0.3, Right: 0.3, Threshold: 0.1, LeftEnabled: true, RightEnabled: true, Mode: TriggerExclusive},
			want: Decision{Left: true},
		},
		{
			name: "exclusive with disabled louder channel",
			in:   TriggerInput{Left: 0.2, Right: 0.9, Threshold: 0.1, LeftEnabled: true, RightEnabled: false, Mode: TriggerExclusive},
			want: Decision{Left: true},
		},
		{
			name: "threshold within separation fires neither",
			in:   TriggerInput{Left: 0.3, Right: 0.31, Threshold: 0.1, LeftEnabled: true, RightEnabled: true, Mode: TriggerThreshold, Separation: 0.02},
			want: Decision{},
		},
		{
			name: "threshold separated left wins",
			in:   TriggerInput{Left: 0.5, Right: 0.3, Threshold: 0.1, LeftEnabled: true, RightEnabled: true, Mode: TriggerThreshold, Separation: 0.02},
			want: Decision{Left: true},
		},
		{
			name: "threshold separated right wins",
			in:   TriggerInput{Left: 0.3, Right: 0.5, Threshold: 0.1, LeftEnabled: true, RightEnabled: true, Mode: TriggerThreshold, Separation: 0.02},
			want: Decision{Right: true},
		},
		{
			name: "threshold single exceeding channel ignores separation",
			in:   TriggerInput{Left: 0.11, Right: 0.09, Threshold: 0.1, LeftEnabled: true, RightEnabled: true, Mode: TriggerThreshold, Separation: 0.5},
			want: Decision{Left: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.in))
		})
	}
}

func TestDecisionChannelsOrder(t *testing.T) {
	assert.Equal(t, []Channel{ChannelLeft, ChannelRight}, Decision{Left: true, Right: true}.Channels())
	assert.Equal(t, []Channel{ChannelRight}, Decision{Right: true}.Channels())
	assert.Empty(t, Decision{}.Channels())
	assert.False(t, Decision{}.Any())
	assert.True(t, Decision{Left: true}.Any())
}

func TestParseTriggerMode(t *testing.T) {
	for _, mode := range []TriggerMode{TriggerIndependent, TriggerExclusive, TriggerThreshold} {
		parsed, err := ParseTriggerMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}

	_, err := ParseTriggerMode("loudest")
	assert.Error(t, err)
}
