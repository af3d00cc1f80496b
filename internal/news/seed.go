package news

import "github.com/hitoshi/newsswiper/internal/model"

// sampleNews は記事が1件もない場合に投入するサンプル記事。
var sampleNews = []model.NewsItem{
	{
		Title:    "AI Breakthrough in Medical Imaging",
		Content:  "Researchers have developed a new AI algorithm that can detect early signs of cancer with 95% accuracy, potentially revolutionizing early diagnosis and treatment.",
		ImageURL: "https://images.unsplash.com/photo-1559757148-5c350d0d3c56?w=400&h=300&fit=crop",
		Source:   "Tech Daily",
		Category: "Technology",
	},
	{
		Title:    "Global Climate Summit Reaches Historic Agreement",
		Content:  "World leaders have agreed to ambitious new targets for reducing carbon emissions by 2030, marking a significant step forward in the fight against climate change.",
		ImageURL: "https://images.unsplash.com/photo-1560472354-b33ff0c44a43?w=400&h=300&fit=crop",
		Source:   "Global News",
		Category: "Environment",
	},
	{
		Title:    "SpaceX Successfully Lands on Mars",
		Content:  "In a historic moment for space exploration, SpaceX has successfully landed its Starship vehicle on the surface of Mars, opening new possibilities for human colonization.",
		ImageURL: "https://images.unsplash.com/photo-1446776811953-b23d0bd75ac2?w=400&h=300&fit=crop",
		Source:   "Space Weekly",
		Category: "Science",
	},
	{
		Title:    "Revolutionary Quantum Computer Breakthrough",
		Content:  "Scientists have achieved quantum supremacy with a new 1000-qubit processor, solving problems that would take classical computers thousands of years in mere minutes.",
		ImageURL: "https://images.unsplash.com/photo-1518709268805-4e9042af2176?w=400&h=300&fit=crop",
		Source:   "Quantum Today",
		Category: "Technology",
	},
	{
		Title:    "New Renewable Energy Milestone Reached",
		Content:  "Solar and wind power now generate more electricity than fossil fuels in the European Union, marking a major milestone in the transition to clean energy.",
		ImageURL: "https://images.unsplash.com/photo-1509391366360-2e959784a276?w=400&h=300&fit=crop",
		Source:   "Energy Report",
		Category: "Environment",
	},
}

// SampleNews はサンプル記事のコピーを返す。
func SampleNews() []model.NewsItem {
	out := make([]model.NewsItem, len(sampleNews))
	copy(out, sampleNews)
	return out
}
