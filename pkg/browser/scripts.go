package browser

// Names of the functions exposed to the page.
const (
	mutationBinding   = "__htmlblockMutations"
	visibilityBinding = "__htmlblockVisibility"
)

// visibilityScript reports every visibilitychange to the visibility binding.
// It is installed as an init script, so it runs in every document the page loads.
const visibilityScript = `document.addEventListener('visibilitychange', () => {
  window.` + visibilityBinding + `(document.hidden);
});`

// observeScript starts a MutationObserver over the body subtree and
// forwards the size of every batch to the mutation binding.
const observeScript = `(id) => {
  const observers = window.__htmlblockObservers || (window.__htmlblockObservers = {});
  const observer = new MutationObserver((records) => {
    window.` + mutationBinding + `(id, records.length);
  });
  observer.observe(document.body || document.documentElement, { childList: true, subtree: true });
  observers[id] = observer;
}`

// disconnectScript stops the MutationObserver registered under id.
const disconnectScript = `(id) => {
  const observers = window.__htmlblockObservers;
  if (observers && observers[id]) {
    observers[id].disconnect();
    delete observers[id];
  }
}`

// validateSelectorScript checks a selector with the page's native engine and
// returns the error message, or null when the selector is valid.
const validateSelectorScript = `(selector) => {
  try {
    document.createDocumentFragment().querySelector(selector);
    return null;
  } catch (e) {
    return String(e && e.message ? e.message : e);
  }
}`

const removeScript = `(element) => element.remove()`
