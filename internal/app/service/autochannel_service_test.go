package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/autovoice-bot/internal/domain"
)

// ---------- fakes ----------

type createdChannel struct {
	ID      string
	GuildID string
	Params  domain.CreateChannelParams
}

type memberMove struct {
	MemberID  string
	ChannelID string
}

type fakeGateway struct {
	mu      sync.Mutex
	nextID  int
	created []createdChannel
	moves   []memberMove
	deleted []string

	failCreate error
	failMove   error
	failDelete error
	failFetch  error

	channels map[string]domain.ChannelInfo // metadata para FetchChannel
}

func (g *fakeGateway) CreateChannel(_ context.Context, guildID string, p domain.CreateChannelParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate != nil {
		return "", g.failCreate
	}
	g.nextID++
	id := fmt.Sprintf("ch-%d", g.nextID)
	g.created = append(g.created, createdChannel{ID: id, GuildID: guildID, Params: p})
	return id, nil
}

func (g *fakeGateway) MoveMember(_ context.Context, _, memberID, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failMove != nil {
		return g.failMove
	}
	g.moves = append(g.moves, memberMove{MemberID: memberID, ChannelID: channelID})
	return nil
}

func (g *fakeGateway) DeleteChannel(_ context.Context, channelID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDelete != nil {
		return g.failDelete
	}
	g.deleted = append(g.deleted, channelID)
	return nil
}

func (g *fakeGateway) FetchChannel(_ context.Context, channelID string) (domain.ChannelInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFetch != nil {
		return domain.ChannelInfo{}, g.failFetch
	}
	if info, ok := g.channels[channelID]; ok {
		return info, nil
	}
	return domain.ChannelInfo{ID: channelID}, nil
}

func (g *fakeGateway) lastMove() memberMove {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.moves[len(g.moves)-1]
}

type fakeCache struct {
	mu        sync.Mutex
	publishes int
	last      map[string][]domain.ActiveAutoChannel
	fail      error
}

func (c *fakeCache) SetAutoChannels(_ context.Context, guildID string, channels []domain.ActiveAutoChannel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	if c.last == nil {
		c.last = map[string][]domain.ActiveAutoChannel{}
	}
	c.publishes++
	c.last[guildID] = channels
	return nil
}

// ---------- helpers ----------

const (
	guild = "g1"
	tplID = "tpl-1"
)

func newTestService(t *testing.T, maxChannels int, timeout time.Duration) (*AutoChannelService, *fakeGateway, *fakeCache, *time.Time) {
	t.Helper()
	gw := &fakeGateway{}
	cache := &fakeCache{}
	svc := NewAutoChannelService(gw, cache)
	t.Cleanup(svc.Stop)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	svc.LoadChannelConfigs([]domain.TemplateConfig{{
		TemplateChannelID: tplID,
		GuildID:           guild,
		NamePattern:       "Auto-{number}",
		MaxChannels:       maxChannels,
		EmptyTimeout:      timeout,
		Enabled:           true,
	}})
	return svc, gw, cache, &clock
}

func join(svc *AutoChannelService, member, channel string) {
	svc.HandleVoiceEvent(context.Background(), domain.VoiceEvent{
		GuildID: guild, MemberID: member, NewChannelID: channel,
	})
}

func move(svc *AutoChannelService, member, from, to string) {
	svc.HandleVoiceEvent(context.Background(), domain.VoiceEvent{
		GuildID: guild, MemberID: member, PrevChannelID: from, NewChannelID: to,
	})
}

// joinTemplate simula el flujo completo: el miembro entra a la plantilla,
// el manager crea el canal y lo mueve, y el gateway emite la notificación
// del move (que es la que sube memberCount).
func joinTemplate(t *testing.T, svc *AutoChannelService, gw *fakeGateway, member string) string {
	t.Helper()
	before := len(gw.created)
	join(svc, member, tplID)
	require.Len(t, gw.created, before+1, "debió crear exactamente un canal")
	id := gw.created[before].ID
	require.Equal(t, memberMove{MemberID: member, ChannelID: id}, gw.lastMove())
	move(svc, member, tplID, id)
	return id
}

// ---------- tests ----------

func TestJoinTemplateCreatesAndMoves(t *testing.T) {
	svc, gw, cache, _ := newTestService(t, 2, 5*time.Minute)

	id := joinTemplate(t, svc, gw, "userA")

	require.Equal(t, "Auto-1", gw.created[0].Params.Name)
	st := svc.Stats()
	assert.Equal(t, 1, st.TotalChannels)
	assert.Equal(t, map[string]int{tplID: 1}, st.ChannelsByTemplate)
	assert.Equal(t, 0, st.QueueSize)
	assert.Equal(t, 1, svc.active[id].MemberCount)
	assert.True(t, svc.active[id].EmptyAt.IsZero())
	assert.Greater(t, cache.publishes, 0)
}

func TestCapacityNeverOvershoots(t *testing.T) {
	svc, gw, _, _ := newTestService(t, 2, 5*time.Minute)

	joinTemplate(t, svc, gw, "u1")
	joinTemplate(t, svc, gw, "u2")

	// tercero y cuarto: plantilla llena, van a la cola en orden de llegada
	join(svc, "u3", tplID)
	join(svc, "u4", tplID)

	require.Len(t, gw.created, 2)
	st := svc.Stats()
	assert.Equal(t, 2, st.TotalChannels)
	assert.Equal(t, 2, st.QueueSize)
	require.Len(t, svc.queues[tplID], 2)
	assert.Equal(t, "u3", svc.queues[tplID][0].MemberID)
	assert.Equal(t, "u4", svc.queues[tplID][1].MemberID)
}

func TestMemberQueuedAtMostOnce(t *testing.T) {
	svc, gw, _, _ := newTestService(t, 1, 5*time.Minute)

	joinTemplate(t, svc, gw, "u1")
	join(svc, "u2", tplID)
	// rebota: sale y vuelve a entrar a la plantilla
	move(svc, "u2", tplID, "")
	join(svc, "u2", tplID)

	assert.Equal(t, 1, svc.Stats().QueueSize)
}

func TestSequenceNumbersNeverRepeat(t *testing.T) {
	svc, gw, _, clock := newTestService(t, 1, time.Minute)

	id := joinTemplate(t, svc, gw, "u1")
	require.Equal(t, "Auto-1", gw.created[0].Params.Name)

	// se vacía y el sweep lo borra
	move(svc, "u1", id, "")
	*clock = clock.Add(2 * time.Minute)
	require.Equal(t, 1, svc.ForceCleanup(context.Background()))

	// el siguiente canal no reusa el 1 aunque Auto-1 ya no exista
	joinTemplate(t, svc, gw, "u2")
	require.Equal(t, "Auto-2", gw.created[1].Params.Name)
}

func TestEmptyChannelDeletedAfterTimeout(t *testing.T) {
	svc, gw, _, clock := newTestService(t, 2, 5*time.Minute)

	id := joinTemplate(t, svc, gw, "u1")
	move(svc, "u1", id, "")
	require.False(t, svc.active[id].EmptyAt.IsZero())

	// todavía no venció: no se borra
	*clock = clock.Add(4 * time.Minute)
	assert.Equal(t, 0, svc.ForceCleanup(context.Background()))
	assert.Equal(t, 1, svc.Stats().TotalChannels)

	*clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, svc.ForceCleanup(context.Background()))
	assert.Equal(t, []string{id}, gw.deleted)
	assert.Equal(t, 0, svc.Stats().TotalChannels)
}

func TestRejoinBeforeTimeoutCancelsDeletion(t *testing.T) {
	svc, gw, _, clock := newTestService(t, 2, 5*time.Minute)

	id := joinTemplate(t, svc, gw, "u1")
	move(svc, "u1", id, "")
	*clock = clock.Add(3 * time.Minute)

	// vuelve alguien antes del timeout: emptyAt se limpia
	move(svc, "u2", "", id)
	*clock = clock.Add(10 * time.Minute)

	assert.Equal(t, 0, svc.ForceCleanup(context.Background()))
	assert.Empty(t, gw.deleted)
	assert.Equal(t, 1, svc.active[id].MemberCount)
}

func TestMoveBetweenTrackedChannelsFiresBothRules(t *testing.T) {
	svc, gw, _, _ := newTestService(t, 2, 5*time.Minute)

	id1 := joinTemplate(t, svc, gw, "u1")
	id2 := joinTemplate(t, svc, gw, "u2")

	// u1 se pasa directo de id1 a id2 en una sola notificación
	move(svc, "u1", id1, id2)

	assert.Equal(t, 0, svc.active[id1].MemberCount)
	assert.False(t, svc.active[id1].EmptyAt.IsZero())
	assert.Equal(t, 2, svc.active[id2].MemberCount)
}

func TestDeleteFailureRetriesNextTick(t *testing.T) {
	svc, gw, _, clock := newTestService(t, 1, time.Minute)

	id := joinTemplate(t, svc, gw, "u1")
	move(svc, "u1", id, "")
	*clock = clock.Add(2 * time.Minute)

	gw.failDelete = errors.New("rate limited")
	assert.Equal(t, 0, svc.ForceCleanup(context.Background()))
	// la tabla no pierde de vista el canal que no se pudo borrar
	require.Contains(t, svc.active, id)

	gw.failDelete = nil
	assert.Equal(t, 1, svc.ForceCleanup(context.Background()))
	assert.NotContains(t, svc.active, id)
}

func TestCreateFailureLeavesMemberUnmoved(t *testing.T) {
	svc, gw, _, _ := newTestService(t, 2, 5*time.Minute)

	gw.failCreate = errors.New("permisos")
	join(svc, "u1", tplID)

	st := svc.Stats()
	assert.Equal(t, 0, st.TotalChannels)
	assert.Equal(t, 0, st.QueueSize, "un create fallido no encola en silencio")
	assert.Empty(t, gw.moves)

	// el dispatcher sigue vivo para el próximo evento
	gw.failCreate = nil
	joinTemplate(t, svc, gw, "u2")
	assert.Equal(t, 1, svc.Stats().TotalChannels)
}

func TestMoveFailureStillRegistersChannel(t *testing.T) {
	svc, gw, _, clock := newTestService(t, 2, time.Minute)

	gw.failMove = errors.New("member ya no está en voz")
	join(svc, "u1", tplID)

	require.Len(t, gw.created, 1)
	id := gw.created[0].ID
	require.Contains(t, svc.active, id, "no se orfanea en silencio")

	// quedó vacío desde el create: el sweep lo limpia como a cualquiera
	*clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, svc.ForceCleanup(context.Background()))
	assert.Equal(t, []string{id}, gw.deleted)
}

func TestQueueDrainsOnDeletionInFIFOOrder(t *testing.T) {
	svc, gw, _, clock := newTestService(t, 1, 5*time.Minute)

	// escenario completo: A entra, B queda en cola, A se va, vence el
	// timeout y el sweep borra Auto-1 y crea Auto-2 para B
	id1 := joinTemplate(t, svc, gw, "userA")
	require.Equal(t, "Auto-1", gw.created[0].Params.Name)

	join(svc, "userB", tplID)
	require.Equal(t, 1, svc.Stats().QueueSize)

	move(svc, "userA", id1, "")
	*clock = clock.Add(6 * time.Minute)
	svc.ForceCleanup(context.Background())

	require.Len(t, gw.created, 2)
	assert.Equal(t, "Auto-2", gw.created[1].Params.Name)
	assert.Equal(t, memberMove{MemberID: "userB", ChannelID: gw.created[1].ID}, gw.lastMove())

	st := svc.Stats()
	assert.Equal(t, 1, st.TotalChannels)
	assert.Equal(t, 0, st.QueueSize)
}

func TestDrainFailureRequeuesAtHead(t *testing.T) {
	svc, gw, _, clock := newTestService(t, 1, time.Minute)

	id := joinTemplate(t, svc, gw, "u1")
	join(svc, "u2", tplID)
	join(svc, "u3", tplID)
	move(svc, "u1", id, "")
	*clock = clock.Add(2 * time.Minute)

	gw.failCreate = errors.New("rate limited")
	svc.ForceCleanup(context.Background())

	// u2 sigue primero; nadie perdió su lugar
	require.Len(t, svc.queues[tplID], 2)
	assert.Equal(t, "u2", svc.queues[tplID][0].MemberID)

	gw.failCreate = nil
	// al liberarse capacidad de nuevo (acá: otro sweep sin vencidos no
	// drena, así que simulamos el próximo ciclo completo)
	id2 := joinTemplate(t, svc, gw, "u9")
	move(svc, "u9", id2, "")
	*clock = clock.Add(2 * time.Minute)
	svc.ForceCleanup(context.Background())
	assert.Equal(t, "u2", gw.lastMove().MemberID)
}

func TestDisabledAndUnknownTemplatesAreNoOps(t *testing.T) {
	svc, gw, _, _ := newTestService(t, 2, 5*time.Minute)

	svc.LoadChannelConfigs([]domain.TemplateConfig{{
		TemplateChannelID: tplID,
		GuildID:           guild,
		NamePattern:       "Auto-{number}",
		MaxChannels:       2,
		Enabled:           false,
	}})

	join(svc, "u1", tplID)          // plantilla disabled
	join(svc, "u2", "canal-random") // canal desconocido

	assert.Empty(t, gw.created)
	st := svc.Stats()
	assert.Equal(t, 0, st.TotalChannels)
	assert.Equal(t, 0, st.QueueSize)
}

func TestReloadDropsQueuesOfRemovedTemplates(t *testing.T) {
	svc, gw, _, _ := newTestService(t, 1, 5*time.Minute)

	id := joinTemplate(t, svc, gw, "u1")
	join(svc, "u2", tplID)
	require.Equal(t, 1, svc.Stats().QueueSize)

	// la plantilla desaparece del snapshot: su cola no puede drenar nunca
	svc.LoadChannelConfigs(nil)

	st := svc.Stats()
	assert.Equal(t, 0, st.QueueSize)
	// pero el canal activo sigue trackeado y sujeto a cleanup
	assert.Equal(t, 1, st.TotalChannels)
	require.Contains(t, svc.active, id)
}

func TestCacheFailureIsNonFatal(t *testing.T) {
	svc, gw, cache, _ := newTestService(t, 2, 5*time.Minute)
	cache.fail = errors.New("valkey caído")

	joinTemplate(t, svc, gw, "u1")

	// el estado en memoria avanza igual
	assert.Equal(t, 1, svc.Stats().TotalChannels)
}

func TestStatsMatchTableAndQueues(t *testing.T) {
	svc, gw, _, _ := newTestService(t, 2, 5*time.Minute)

	joinTemplate(t, svc, gw, "u1")
	joinTemplate(t, svc, gw, "u2")
	join(svc, "u3", tplID)

	st := svc.Stats()
	assert.Equal(t, len(svc.active), st.TotalChannels)
	total := 0
	for _, q := range svc.queues {
		total += len(q)
	}
	assert.Equal(t, total, st.QueueSize)
	assert.Equal(t, 2, st.ChannelsByTemplate[tplID])
}

func TestStopClearsEverything(t *testing.T) {
	svc, gw, _, _ := newTestService(t, 2, 5*time.Minute)

	joinTemplate(t, svc, gw, "u1")
	join(svc, "u2", tplID)
	join(svc, "u3", tplID)

	svc.Stop()

	st := svc.Stats()
	assert.Equal(t, 0, st.TotalChannels)
	assert.Equal(t, 0, st.QueueSize)

	// eventos post-stop no hacen nada
	join(svc, "u4", tplID)
	assert.Equal(t, 0, svc.Stats().TotalChannels)
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	svc := NewAutoChannelService(&fakeGateway{}, nil)
	svc.Stop()
	svc.Stop() // doble stop tampoco explota

	st := svc.Stats()
	assert.Equal(t, 0, st.TotalChannels)
	assert.Equal(t, 0, st.QueueSize)
}

func TestStartTicksAndStops(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewAutoChannelService(gw, nil)
	svc.LoadChannelConfigs([]domain.TemplateConfig{{
		TemplateChannelID: tplID,
		GuildID:           guild,
		NamePattern:       "Auto-{number}",
		MaxChannels:       1,
		EmptyTimeout:      0, // vacío = borrable en el primer tick
		Enabled:           true,
	}})

	join(svc, "u1", tplID)
	require.Len(t, gw.created, 1)

	svc.Start(10 * time.Millisecond)
	require.Eventually(t, func() bool {
		return svc.Stats().TotalChannels == 0
	}, 2*time.Second, 10*time.Millisecond, "el tick debió barrer el canal vacío")

	svc.Stop()
}
