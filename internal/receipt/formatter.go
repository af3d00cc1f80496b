// Package receipt はスワイプ結果をレシートとして出力する機能を提供する。
//
// Formatter がレシートのマークアップを生成し、Encode がESC/POSのバイト列に変換し、
// Printer がデバイスまたはネットワーク経由でサーマルプリンターに送信する。
// Service はこれらをまとめ、プリンター未接続時は警告付きの成功として扱う。
package receipt

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/newsswiper/internal/model"
)

const trackingAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Document は生成されたレシート。
type Document struct {
	TrackingID string
	Markup     string
}

// Formatter はレシートのマークアップを生成する。
// 装飾用の値はすべて注入された乱数源から生成するため、シードを固定すると出力が再現できる。
// 複数goroutineから安全に呼び出せる。
type Formatter struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewFormatter はFormatterを生成する。
// seedが0の場合は実行ごとに異なる乱数列を使用する。nowがnilの場合はtime.Nowを使用する。
func NewFormatter(seed uint64, now func() time.Time) *Formatter {
	var src rand.Source
	if seed == 0 {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	} else {
		src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
	if now == nil {
		now = time.Now
	}
	return &Formatter{rng: rand.New(src), now: now}
}

var (
	adCategories = []string{
		"Luxury Cars", "Investment Apps", "Weight Loss", "Dating Sites", "Gaming", "Travel", "Fashion", "Tech Gadgets",
		"Mental Health Apps", "Sleep Aids", "Anxiety Medication", "Financial Planning", "Life Insurance",
		"Home Security", "Privacy VPNs", "Stress Relief", "Career Coaching", "Self-Help Books",
		"Meditation Apps", "Therapy Services", "Fitness Tracking", "Social Media Management",
	}
	adTriggers = []string{
		"Immediate Need Detected", "High Vulnerability Match", "Emotional Trigger Point", "Exploitable Interest",
	}
	noticeLines = []string{
		"Your digital existence has been processed",
		"Your consciousness has been quantified",
		"Your future behaviors will be optimized",
		"Your reality is now our product",
	}
	closingLines = []string{
		"Your existence has been successfully commodified",
		"Your future behaviors have been predetermined",
		"Your choices are now optimized for monetization",
		"Resistance only improves our prediction models",
	}
	networks = []struct {
		name     string
		findings []string
	}{
		{"Facebook", []string{"Data Harvested", "Profile Analyzed", "Connections Mapped"}},
		{"Google", []string{"Search Patterns Indexed", "Email Contents Scanned", "Location Tracked"}},
		{"Amazon", []string{"Purchase History Analyzed", "Wishlist Profiled", "Browse Pattern Recorded"}},
		{"Twitter", []string{"Sentiment Analyzed", "Network Mapped", "Influence Calculated"}},
		{"Banking Apps", []string{"Transactions Monitored", "Spending Analyzed", "Financial Status Tracked"}},
		{"Health Apps", []string{"Biometrics Recorded", "Sleep Patterns Monitored", "Stress Levels Tracked"}},
	}
)

// Format は記事とアクションからレシートを生成する。
func (f *Formatter) Format(item model.NewsItem, action model.SwipeAction) Document {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	id := f.trackingID(now)

	var b builder
	b.line("^^^ATTENTION RECEIPT")
	b.line("{text:wide}SURVEILLANCE RECORD{text:normal}")
	b.row(now.Format("1/2/2006"), now.Format("3:04:05 PM"))
	b.line("Session ID: " + id)

	b.section("Notice")
	b.lines(noticeLines...)

	emotional := f.rng.Float64()*0.8 + 0.2
	b.section("Psychological Profile")
	b.row("Emotional State", choose(emotional > 0.5, "Vulnerable", "Resistant"))
	b.row("Suggestibility", f.percent())
	b.row("Anxiety Level", f.percent())
	b.row("Sleep Quality", f.pick("Poor", "Irregular", "Monitored"))
	b.row("Mental State", f.pick("Fatigued", "Stressed", "Distracted", "Susceptible"))

	b.section("Digital Shadow")
	b.row("Device ID", id)
	b.row("Session Length", fmt.Sprintf("%dmin", f.between(30, 150)))
	b.row("IP Address", fmt.Sprintf("%d.%d.x.x", f.rng.IntN(255), f.rng.IntN(255)))
	b.row("Browser History", fmt.Sprintf("%d pages indexed", f.between(500, 1500)))
	b.row("Search Patterns", f.pick("Concerning", "Predictable", "Valuable"))

	b.section("Content Interaction")
	b.line(`"` + plain(item.Title) + `"`)
	b.row("Source", plain(item.Source))
	b.row("Category", plain(item.Category))
	b.row("Engagement", choose(action == model.ActionSave, "CAPTURED", "NOTED"))
	b.row("Interest Vector", f.pick("Politics", "Technology", "Health", "Finance"))

	dwell := f.between(8, 53)
	scroll := f.between(15, 115)
	mouse := f.between(50, 250)
	b.section("Behavioral Metrics")
	b.row("Attention Span", fmt.Sprintf("%ds (%s)", dwell, choose(dwell > 20, "Above Average", "Below Average")))
	b.row("Scroll Pattern", fmt.Sprintf("%d%% (%s)", scroll, f.pick("Anxious", "Thorough", "Skimming")))
	b.row("Mouse Movement", fmt.Sprintf("%d (%s)", mouse, choose(mouse > 100, "Agitated", "Focused")))
	b.row("Eye Tracking", f.pick("Fixated", "Scanning", "Avoiding"))
	b.row("Focus Score", fmt.Sprintf("%d/100", f.between(25, 125)))

	b.section("Demographic Analysis")
	b.row("Age Bracket", fmt.Sprintf("%s (%d%% confidence)", f.pick("18-24", "25-34", "35-44", "45-54", "55+"), f.rng.IntN(99)))
	b.row("Income Range", f.pick("Low", "Medium", "High")+" (Spending patterns analyzed)")
	b.row("Political Bias", f.pick("Conservative", "Moderate", "Liberal", "Apolitical")+" (Based on content affinity)")
	b.row("Location", f.pick("Urban", "Suburban", "Rural")+" Zone")
	b.row("Social Class", f.pick("Aspirational", "Struggling", "Comfortable", "Elite"))
	b.row("Influence Level", fmt.Sprintf("%d/100", f.rng.IntN(100)))

	b.section("Vulnerability Assessment")
	for _, label := range []string{"Financial Stress", "Career Anxiety", "Health Concerns", "Social Pressure", "FOMO Index"} {
		b.row(label, f.percent())
	}

	b.section("Targeted Solutions")
	for i, ad := range f.sample(adCategories, len(adTriggers)) {
		b.row(ad, "^"+adTriggers[i])
	}
	b.rule()
	b.line("Additional Vectors:")
	for range 2 {
		b.row(adCategories[f.rng.IntN(len(adCategories))], fmt.Sprintf("^%d%% Match", f.rng.IntN(100)))
	}

	b.section("Surveillance Network")
	for _, n := range networks {
		b.row(n.name, f.pick(n.findings...))
	}

	b.section("Predictive Analytics")
	b.row("Next Purchase", f.pick("Electronics", "Clothing", "Food", "Services"))
	b.row("Price Tolerance", fmt.Sprintf("^$%.0f", f.rng.Float64()*500+50))
	b.row("Conversion Rate", fmt.Sprintf("^%.1f%%", f.rng.Float64()*0.4+0.1))
	b.row("Manipulation", fmt.Sprintf("^%.1f%% Effective", f.rng.Float64()*0.8+0.2))

	b.section("Privacy Compromise")
	b.row("Active Cookies", fmt.Sprintf("%d (%d%% Tracking)", f.between(8, 23), f.rng.IntN(100)))
	b.row("Live Trackers", fmt.Sprintf("%d (%d%% Active)", f.between(5, 17), f.rng.IntN(100)))
	b.row("Data Brokers", fmt.Sprintf("%d (%d%% Selling)", f.between(3, 11), f.rng.IntN(100)))
	b.row("Privacy Score", fmt.Sprintf("%d/100 (Critically Low)", f.between(10, 40)))

	b.section("Monetization Summary")
	b.row("Raw Data Value", f.dollars(0.01))
	b.row("Profile Worth", f.dollars(0.02))
	b.row("Behavior Value", f.dollars(0.03))
	b.row("Prediction Value", f.dollars(0.04))
	b.rule()
	b.row("^*Total Human Capital Value*", f.dollars(0.1))

	b.blank()
	b.line("{text:wide}NOTICE{text:normal}")
	b.lines(closingLines...)

	return Document{TrackingID: id, Markup: b.String()}
}

// trackingID は "ATT-<ミリ秒の36進数>-<ランダム4文字>" 形式のIDを生成する。
func (f *Formatter) trackingID(now time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = trackingAlphabet[f.rng.IntN(len(trackingAlphabet))]
	}
	return "ATT-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) + "-" + string(suffix)
}

func (f *Formatter) pick(options ...string) string {
	return options[f.rng.IntN(len(options))]
}

// between は[lo, hi)の整数を返す。
func (f *Formatter) between(lo, hi int) int {
	return lo + f.rng.IntN(hi-lo)
}

func (f *Formatter) percent() string {
	return strconv.Itoa(f.rng.IntN(100)) + "%"
}

func (f *Formatter) dollars(limit float64) string {
	return fmt.Sprintf("^$%.3f", f.rng.Float64()*limit)
}

// sample は重複なしでn件を選ぶ。元のスライスは変更しない。
func (f *Formatter) sample(from []string, n int) []string {
	idx := f.rng.Perm(len(from))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = from[j]
	}
	return out
}

// markupEscaper は記事由来の文字列のうち、マークアップとして解釈される文字を無効化する。
var markupEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"|", "/",
	"{", "(",
)

// plain は記事由来の文字列をマークアップに埋め込める形にする。
func plain(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimLeft(s, "^")
	return markupEscaper.Replace(s)
}

func choose(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

// builder はマークアップを1行ずつ組み立てる。
type builder struct {
	strings.Builder
}

func (b *builder) line(s string) {
	b.WriteString(s)
	b.WriteByte('\n')
}

func (b *builder) lines(ss ...string) {
	for _, s := range ss {
		b.line(s)
	}
}

func (b *builder) blank() {
	b.WriteByte('\n')
}

func (b *builder) section(title string) {
	b.blank()
	b.line("^^" + title)
}

func (b *builder) row(label, value string) {
	b.line(label + " | " + value)
}

func (b *builder) rule() {
	b.line("---")
}
