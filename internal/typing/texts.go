package typing

import (
	"fmt"
	"math/rand"
)

// Темы текстов тренажера
const (
	TopicNature     = "nature"
	TopicTechnology = "technology"
	TopicMotivation = "motivation"
	TopicDailyLife  = "daily life"
	TopicQuotes     = "quotes"
	TopicCode       = "code"
)

// Topics возвращает все доступные темы
func Topics() []string {
	return []string{TopicNature, TopicTechnology, TopicMotivation, TopicDailyLife, TopicQuotes, TopicCode}
}

// ValidTopic проверяет, что тема известна каталогу
func ValidTopic(topic string) bool {
	for _, t := range Topics() {
		if t == topic {
			return true
		}
	}
	return false
}

// Каталог текстов по уровню сложности и теме
var texts = map[Difficulty]map[string][]string{
	DifficultyBeginner: {
		TopicNature:     {"The sun is up. A bird sings. The sky is blue. Trees are green. I see a cat."},
		TopicTechnology: {"I have a phone. It can call. It can text. Apps are fun. Games are cool."},
		TopicMotivation: {"I can do it. I try hard. I am good. I win. Go me!"},
		TopicDailyLife:  {"I wake up. I eat food. I go out. I play games. I go to bed."},
		TopicQuotes:     {"Be kind. Work hard. Dream big. Stay true. Have fun."},
		TopicCode:       {"let x = 1; let y = 2; let z = x + y; console.log(z);"},
	},
	DifficultyIntermediate: {
		TopicNature: {
			"Every morning the sun rises and brings warmth to our world. Birds chirp in the trees while gentle winds blow through the leaves. The grass sparkles with morning dew.",
			"Every season brings new changes to the landscape, painting the world in different colors and textures throughout the year.",
		},
		TopicTechnology: {
			"Computers help us work and play every day. We use the internet to learn new things and connect with friends. Smart phones make our lives easier and more fun.",
			"Technology connects us across vast distances, enabling collaboration and innovation that was once impossible to imagine.",
		},
		TopicMotivation: {
			"Success comes from hard work and never giving up on your dreams. Each small step forward brings you closer to your goals. Believe in yourself always.",
			"The journey of a thousand miles begins with a single step. Believe in yourself and your abilities to achieve greatness.",
			"Champions are made when no one is watching. Your daily effort compounds into extraordinary results over time.",
		},
		TopicDailyLife: {"I wake up early each morning and start my day with breakfast. After getting ready, I head to school or work. In the evening, I relax and spend time with family."},
		TopicQuotes:    {"The only way to do great work is to love what you do. In the middle of difficulty lies opportunity. The future belongs to those who believe in their dreams."},
		TopicCode:      {"function greet(name) { return 'Hello, ' + name + '!'; } const message = greet('World'); console.log(message);"},
	},
	DifficultyAdvanced: {
		TopicNature: {
			"The intricate ecosystems of our planet demonstrate remarkable adaptability and resilience. From the microscopic organisms in soil to the magnificent creatures roaming vast savannas, each species plays a crucial role in maintaining ecological balance and biodiversity.",
		},
		TopicTechnology: {
			"Artificial intelligence and machine learning algorithms are revolutionizing industries across the globe. These sophisticated systems can analyze vast datasets, recognize patterns, and make predictions with unprecedented accuracy, fundamentally transforming how businesses operate.",
		},
		TopicMotivation: {
			"Excellence is not a destination but a continuous journey of self-improvement and dedication. The most successful individuals understand that failure is merely a stepping stone to greatness, providing invaluable lessons that shape future achievements.",
		},
		TopicDailyLife: {"Modern professionals navigate increasingly complex schedules, balancing demanding careers with personal responsibilities and wellness pursuits. Effective time management and prioritization have become essential skills for maintaining productivity while preventing burnout."},
		TopicQuotes:    {"The measure of intelligence is the ability to change. It is not the strongest of the species that survives, nor the most intelligent, but the one most responsive to change. Innovation distinguishes between a leader and a follower."},
		TopicCode:      {"const fetchUserData = async (userId: string): Promise<User> => { const response = await fetch(`/api/users/${userId}`); if (!response.ok) throw new Error('Failed to fetch'); return response.json(); };"},
	},
	DifficultyExpert: {
		TopicNature: {
			"Anthropogenic climate change precipitates unprecedented ecological disruptions, manifesting through accelerated desertification, coral bleaching phenomena, and catastrophic biodiversity loss. Contemporary conservation strategies necessitate comprehensive interdisciplinary approaches integrating indigenous knowledge with cutting-edge environmental science methodologies.",
		},
		TopicTechnology: {
			"Quantum computing architectures leveraging superposition and entanglement principles promise exponential computational advantages for cryptographic applications, pharmaceutical research, and complex optimization problems, though significant engineering challenges regarding qubit coherence and error correction mechanisms remain unresolved.",
		},
		TopicMotivation: {
			"Psychological resilience transcends mere persistence; it encompasses the sophisticated cognitive reframing of adversity as catalytic opportunity for transformative personal development. Distinguished achievers cultivate metacognitive awareness, enabling deliberate emotional regulation and strategic adaptation amidst volatility.",
		},
		TopicDailyLife: {"Contemporary urban professionals increasingly embrace asynchronous communication protocols and distributed collaboration frameworks, fundamentally reimagining traditional workplace paradigms. This zeitgeist shift necessitates cultivating digital literacy, maintaining psychological boundaries, and establishing sustainable productivity rhythms."},
		TopicQuotes:    {"The impediment to action advances action. What stands in the way becomes the way. We are what we repeatedly do. Excellence, then, is not an act but a habit. The unexamined life is not worth living for a human being."},
		TopicCode:      {"class AsyncIterableQueue<T> implements AsyncIterable<T> { private queue: T[] = []; private resolvers: ((value: IteratorResult<T>) => void)[] = []; async *[Symbol.asyncIterator](): AsyncIterator<T> { while (true) yield await this.dequeue(); } }"},
	},
}

// TextFor возвращает случайный текст для темы на заданном уровне сложности.
// Неизвестная тема подменяется мотивационной, чтобы выбор текста никогда
// не срывал создание гонки или сессии.
func TextFor(difficulty Difficulty, topic string) (string, error) {
	if !difficulty.Valid() {
		return "", fmt.Errorf("invalid difficulty: %d", difficulty)
	}
	byTopic := texts[difficulty]
	candidates, ok := byTopic[topic]
	if !ok || len(candidates) == 0 {
		candidates = byTopic[TopicMotivation]
	}
	return candidates[rand.Intn(len(candidates))], nil
}
